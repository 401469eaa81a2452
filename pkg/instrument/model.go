package instrument

// ElementKind classifies a driver model element.
type ElementKind string

const (
	Variable  ElementKind = "variable"
	Action    ElementKind = "action"
	Submodule ElementKind = "submodule"
)

// ModelElement describes one thing a front end can show for a driver. Read
// and Write name catalog paths.
type ModelElement struct {
	Kind  ElementKind `json:"kind" yaml:"kind"`
	Name  string      `json:"name" yaml:"name"`
	Read  string      `json:"read,omitempty" yaml:"read,omitempty"`
	Write string      `json:"write,omitempty" yaml:"write,omitempty"`
	Unit  string      `json:"unit,omitempty" yaml:"unit,omitempty"`
	Help  string      `json:"help,omitempty" yaml:"help,omitempty"`
}

// Modeler is implemented by drivers that describe themselves.
type Modeler interface {
	DriverModel() []ModelElement
}
