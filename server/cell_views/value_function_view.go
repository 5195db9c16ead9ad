package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"tdgrid/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValueFunction is a view of the current value function as an isometric 2d projection
// of the surface (x, y, value).
type ValueFunction struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValueFunction(
	done <-chan struct{},
	cells <-chan [][]Cell,
) (vf *ValueFunction) {
	vf = &ValueFunction{id: "valuefunction"}
	vf.updates = channerics.Convert(done, cells, vf.onUpdate)
	return
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

const (
	cellDim = 80            // cell height/width in pixels
	xyscale = cellDim       // pixels per x or y unit
	zscale  = cellDim * 0.3 // pixels per value unit
)

// angle of the x and y axes (30°)
var sinAng, cosAng = math.Sin(math.Pi / 6), math.Cos(math.Pi / 6)

// project applies an isometric projection to the passed point.
func project(x, y, z float64) (float64, float64) {
	sx := (x - y) * cosAng * xyscale
	sy := (x+y)*sinAng*xyscale - z*zscale
	return sx, sy
}

// getPolyPoints returns the svg points of the surface patch over four adjacent cells:
// a is bottom left, b top left, c top right and d bottom right.
func getPolyPoints(a, b, c, d Cell) string {
	return makeFuncPolygon("", a, b, c, d).String()
}

func makeFuncPolygon(id string, a, b, c, d Cell) (fp *funcPolygon) {
	fp = &funcPolygon{Id: id}
	fp.ax, fp.ay = project(float64(a.X), float64(a.Y), a.Value)
	fp.bx, fp.by = project(float64(b.X), float64(b.Y), b.Value)
	fp.cx, fp.cy = project(float64(c.X), float64(c.Y), c.Value)
	fp.dx, fp.dy = project(float64(d.X), float64(d.Y), d.Value)
	return
}

type funcPolygon struct {
	Id     string
	ax, ay float64
	bx, by float64
	cx, cy float64
	dx, dy float64
}

// String returns the polygon in the form of the svg 'points' attribute, truncated to ints.
func (fp *funcPolygon) String() string {
	return fmt.Sprintf("%d,%d %d,%d %d,%d %d,%d",
		int(fp.ax), int(fp.ay),
		int(fp.bx), int(fp.by),
		int(fp.cx), int(fp.cy),
		int(fp.dx), int(fp.dy),
	)
}

func (fp *funcPolygon) bounds() (xmin, ymin, xmax, ymax float64) {
	xmin = math.Min(math.Min(fp.ax, fp.bx), math.Min(fp.cx, fp.dx))
	ymin = math.Min(math.Min(fp.ay, fp.by), math.Min(fp.cy, fp.dy))
	xmax = math.Max(math.Max(fp.ax, fp.bx), math.Max(fp.cx, fp.dx))
	ymax = math.Max(math.Max(fp.ay, fp.by), math.Max(fp.cy, fp.dy))
	return
}

func polygonId(cell Cell) string {
	return fmt.Sprintf("%d-%d-value-polygon", cell.X, cell.Y)
}

// onUpdate returns the set of view updates needed for the view to reflect current values.
func (vf *ValueFunction) onUpdate(
	cells [][]Cell,
) (ops []fastview.EleUpdate) {
	// Each patch is shaded by the average of its four corners, relative to the extremes.
	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	for _, col := range cells {
		for _, cell := range col {
			minVal = math.Min(minVal, cell.Value)
			maxVal = math.Max(maxVal, cell.Value)
		}
	}

	xmin, ymin := math.MaxFloat64, math.MaxFloat64
	xmax, ymax := -math.MaxFloat64, -math.MaxFloat64
	for ri, col := range cells[:len(cells)-1] {
		for ci, cell := range col[:len(col)-1] {
			a := cells[ri+1][ci]
			b := cells[ri][ci]
			c := cells[ri][ci+1]
			d := cells[ri+1][ci+1]
			polygon := makeFuncPolygon(polygonId(cell), a, b, c, d)

			pxmin, pymin, pxmax, pymax := polygon.bounds()
			xmin, ymin = math.Min(xmin, pxmin), math.Min(ymin, pymin)
			xmax, ymax = math.Max(xmax, pxmax), math.Max(ymax, pymax)

			avgVal := (a.Value + b.Value + c.Value + d.Value) / 4
			ops = append(ops, fastview.EleUpdate{
				EleId: polygon.Id,
				Ops: []fastview.Op{
					{Key: "points", Value: polygon.String()},
					{Key: "fill", Value: getRGBFill(avgVal, minVal, maxVal)},
				},
			})
		}
	}

	// Shift by the min x and y, and scale down only if the plot does not fit the canvas.
	width := float64(len(cells)) * cellDim * 2
	height := float64(len(cells[0])) * cellDim * 2
	scaler := 1.0
	if xmax > xmin {
		scaler = math.Min(scaler, width/(xmax-xmin))
	}
	if ymax > ymin {
		scaler = math.Min(scaler, height/(ymax-ymin))
	}

	ops = append(ops, fastview.EleUpdate{
		EleId: vf.id + "-group",
		Ops: []fastview.Op{
			{
				Key:   "transform",
				Value: fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-xmin), int(-ymin)),
			},
		},
	})

	return
}

// getRGBFill returns a red/blue mix by where val lies between minVal (blue) and maxVal (red).
func getRGBFill(val, minVal, maxVal float64) string {
	redPct := 50
	if maxVal > minVal {
		redPct = int(100.0 * (val - minVal) / (maxVal - minVal))
	}
	return fmt.Sprintf("rgb(%d%%,0%%,%d%%)", redPct, 100-redPct)
}

// Parse adds an svg of polygons plotting the value function surface to t.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	// Polygons are drawn back to front so that nearer patches obscure farther ones.
	_, err = t.Funcs(template.FuncMap{"getPolyPoints": getPolyPoints}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:40px;">
			{{ $x_cells := len . }}
			{{ $y_cells := len (index . 0) }}
			{{ $num_x_polys := sub $x_cells 1 }}
			{{ $num_y_polys := sub $y_cells 1 }}
			{{ $width := mult ` + fmt.Sprint(cellDim) + ` $x_cells }}
			{{ $height := mult ` + fmt.Sprint(cellDim) + ` $y_cells }}
			<svg id="` + vf.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ mult $width 2 }}px"
				height="{{ mult $height 2 }}px"
				style="shape-rendering: crispEdges; stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 3;">
				<g id="` + vf.id + `-group" transform="translate(0 0)">
				{{ $cells := . }}
				{{ range $ri, $col := $cells }}
					{{ if lt $ri $num_x_polys }}
						{{ range $j, $unused := $col }}
							{{ $ci := sub (sub (len $col) $j) 1 }}
							{{ $cell := index $col $ci }}
							{{ if lt $ci $num_y_polys }}
								<polygon id="{{$cell.X}}-{{$cell.Y}}-value-polygon"
									fill="black" fill-opacity="1.0"
									{{ $a := index $cells (add $ri 1) $ci }}
									{{ $b := index $cells $ri $ci }}
									{{ $c := index $cells $ri (add $ci 1) }}
									{{ $d := index $cells (add $ri 1) (add $ci 1) }}
									points="{{ getPolyPoints $a $b $c $d }}" />
							{{ end }}
						{{ end }}
					{{ end }}
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
