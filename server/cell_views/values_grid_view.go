package cell_views

import (
	"fmt"
	"html/template"

	"tdgrid/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValuesGrid is a table of the current state values, with an arrow in each cell
// pointing at its best valued neighbor.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValuesGrid(
	done <-chan struct{},
	cells <-chan [][]Cell,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, cells, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

// onUpdate returns the set of view updates needed for the view to reflect the current values.
func (vg *ValuesGrid) onUpdate(cells [][]Cell) (ops []fastview.EleUpdate) {
	for _, row := range cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-value-text", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "textContent", Value: formatValue(cell.Value)},
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-policy-arrow", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)},
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-cell-rect", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				})
		}
	}
	return
}

func formatValue(val float64) string {
	return fmt.Sprintf("%.1f", val)
}

// Parse adds the grid's svg template to t.
func (vg *ValuesGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = vg.id
	_, err = t.Funcs(template.FuncMap{"formatValue": formatValue}).Parse(
		`{{ define "` + name + `" }}
		<div id="state_values" style="padding:20px;">
			{{ $x_cells := len . }}
			{{ $y_cells := len (index . 0) }}
			{{ $cell_width := 100 }}
			{{ $cell_height := $cell_width }}
			{{ $width := mult $cell_width $x_cells }}
			{{ $height := mult $cell_height $y_cells }}
			{{ $half_height := div $cell_height 2 }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + vg.id + `"
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $col := . }}
					{{ range $cell := $col }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-cell-rect"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text
							x="{{ add (mult $cell.X $cell_width) 10 }}"
							y="{{ add (mult $cell.Y $cell_height) 20 }}"
							font-weight="bold"
							>{{ $cell.Label }}</text>
						<text id="{{$cell.X}}-{{$cell.Y}}-value-text"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) (sub $half_height 10) }}"
							stroke="blue"
							dominant-baseline="text-top" text-anchor="middle"
							>{{ formatValue $cell.Value }}</text>
						<g transform="translate({{ add (mult $cell.X $cell_width) $half_width }}, {{ add (mult $cell.Y $cell_height) (add $half_height 20) }})">
							<text id="{{$cell.X}}-{{$cell.Y}}-policy-arrow"
							stroke="blue" stroke-width="1"
							dominant-baseline="central" text-anchor="middle"
							transform="rotate({{ $cell.PolicyArrowRotation }})"
							>&uarr;</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
