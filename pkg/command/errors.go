package command

import (
	"fmt"
	"strings"
)

// UnknownMethodError is returned when a command path is not in the catalog.
// Nothing has been bound or called when it is raised.
type UnknownMethodError struct {
	Attempted string
	Known     []string
}

func (e *UnknownMethodError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unknown method %q", e.Attempted)
	if len(e.Known) == 0 {
		b.WriteString("; the driver exposes no methods")
		return b.String()
	}
	b.WriteString("; available methods:")
	for _, k := range e.Known {
		b.WriteString("\n  ")
		b.WriteString(k)
	}
	return b.String()
}

// ArgumentError reports arguments that cannot be bound to a method.
type ArgumentError struct {
	Path string
	Msg  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}
