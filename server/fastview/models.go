// fastview builds simple server-side views: an input data model is converted into a
// view-model, which is multiplexed to one or more views, each of which emits element
// updates for the browser to apply.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to it.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attribute names, or 'textContent' to set the element's text.
	Ops []Op
}

// Op is a key and value, e.g. an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server side view: Parse adds its initial markup to a page template
// and Updates is the chan by which its ele-updates are published.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the view's template definition to the parent, inheriting its func-map,
	// and returns the name of the definition.
	Parse(*template.Template) (string, error)
}
