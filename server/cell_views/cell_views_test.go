package cell_views

import (
	"html/template"
	"strings"
	"testing"

	. "tdgrid/grid_world"
	"tdgrid/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

func testSnapshot() reinforcement.Snapshot {
	snap := reinforcement.Snapshot{
		Width:  5,
		Height: 5,
		Agent:  Position{X: 4, Y: 4},
		CellA:  CellA,
		CellB:  CellB,
		Values: make([]float64, 25),
	}
	// x-major
	snap.Values[1*5+0] = 8.8
	snap.Values[3*5+0] = 5.3
	snap.Values[0*5+4] = -2
	return snap
}

func TestConvert(t *testing.T) {
	Convey("Given a checkpoint snapshot", t, func() {
		cells := Convert(testSnapshot())

		Convey("Cells are indexed by x then y, without flipping", func() {
			So(len(cells), ShouldEqual, 5)
			So(len(cells[0]), ShouldEqual, 5)
			So(cells[1][0].X, ShouldEqual, 1)
			So(cells[1][0].Y, ShouldEqual, 0)
			So(cells[1][0].Value, ShouldEqual, 8.8)
			So(cells[0][4].Value, ShouldEqual, -2)
		})

		Convey("Special cells are labeled and filled", func() {
			So(cells[1][0].Label, ShouldEqual, "A")
			So(cells[1][0].Fill, ShouldEqual, "lightyellow")
			So(cells[3][0].Label, ShouldEqual, "B")
			So(cells[3][0].Fill, ShouldEqual, "lightblue")
			So(cells[4][4].Fill, ShouldEqual, "lightgreen")
			So(cells[2][2].Fill, ShouldEqual, "white")
			So(cells[2][2].Label, ShouldEqual, "")
		})

		Convey("Arrows point at the best valued neighbor", func() {
			So(cells[0][0].PolicyArrowRotation, ShouldEqual, 90)  // right, to A
			So(cells[2][0].PolicyArrowRotation, ShouldEqual, 270) // left, to A
			So(cells[1][1].PolicyArrowRotation, ShouldEqual, 0)   // up, to A
			So(cells[0][3].PolicyArrowRotation, ShouldEqual, 0)   // up, away from -2
		})
	})
}

func TestValuesGrid(t *testing.T) {
	Convey("Given a values grid", t, func() {
		done := make(chan struct{})
		defer close(done)
		cellUpdates := make(chan [][]Cell)
		vg := NewValuesGrid(done, cellUpdates)
		cells := Convert(testSnapshot())

		Convey("Every cell gets a value, arrow and fill update", func() {
			go func() { cellUpdates <- cells }()
			updates := <-vg.Updates()
			So(len(updates), ShouldEqual, 3*25)

			byId := map[string]string{}
			for _, update := range updates {
				byId[update.EleId] = update.Ops[0].Value
			}
			So(byId["1-0-value-text"], ShouldEqual, "8.8")
			So(byId["0-4-value-text"], ShouldEqual, "-2.0")
			So(byId["0-0-policy-arrow"], ShouldEqual, "rotate(90)")
			So(byId["4-4-cell-rect"], ShouldEqual, "lightgreen")
		})

		Convey("Its template renders the initial cells", func() {
			var sb strings.Builder
			So(execute(vg, cells, &sb), ShouldBeNil)
			html := sb.String()
			So(html, ShouldContainSubstring, `id="1-0-value-text"`)
			So(html, ShouldContainSubstring, ">8.8<")
			So(html, ShouldContainSubstring, ">A<")
		})
	})
}

func TestValueFunction(t *testing.T) {
	Convey("Given a value function view", t, func() {
		done := make(chan struct{})
		defer close(done)
		cellUpdates := make(chan [][]Cell)
		vf := NewValueFunction(done, cellUpdates)
		cells := Convert(testSnapshot())

		Convey("Every surface patch and the enclosing group are updated", func() {
			go func() { cellUpdates <- cells }()
			updates := <-vf.Updates()
			So(len(updates), ShouldEqual, 4*4+1)
			So(updates[len(updates)-1].EleId, ShouldEqual, "valuefunction-group")
		})

		Convey("Its template renders one polygon per patch", func() {
			var sb strings.Builder
			So(execute(vf, cells, &sb), ShouldBeNil)
			So(strings.Count(sb.String(), "<polygon"), ShouldEqual, 16)
		})
	})

	Convey("Fills run from blue at the min to red at the max", t, func() {
		So(getRGBFill(-1, -1, 9), ShouldEqual, "rgb(0%,0%,100%)")
		So(getRGBFill(9, -1, 9), ShouldEqual, "rgb(100%,0%,0%)")
		So(getRGBFill(4, -1, 9), ShouldEqual, "rgb(50%,0%,50%)")
		So(getRGBFill(0, 0, 0), ShouldEqual, "rgb(50%,0%,50%)")
	})
}

type parser interface {
	Parse(*template.Template) (string, error)
}

// execute renders a view's template on its own, with the func-map its parent page provides.
func execute(view parser, cells [][]Cell, sb *strings.Builder) error {
	t := template.New("test").Funcs(template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
	})
	name, err := view.Parse(t)
	if err != nil {
		return err
	}
	if _, err = t.Parse(`{{ template "` + name + `" . }}`); err != nil {
		return err
	}
	return t.Execute(sb, cells)
}
