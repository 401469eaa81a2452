package instrument

import (
	"fmt"
	"strings"
)

// DriverNotFoundError is returned when a driver name matches no module, or
// more than one.
type DriverNotFoundError struct {
	Name    string
	Roots   []string
	Matches []string // root/name of every candidate when ambiguous
	Known   []string // every module on the search path
}

func (e *DriverNotFoundError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("driver %q is ambiguous, found in: %s", e.Name, strings.Join(e.Matches, ", "))
	}
	msg := fmt.Sprintf("driver %q not found in roots [%s]", e.Name, strings.Join(e.Roots, ", "))
	if len(e.Known) > 0 {
		msg += "; known drivers: " + strings.Join(e.Known, ", ")
	}
	return msg
}

// UnknownConnectionError is returned when a module has no backend for the
// requested link. Available lists every Driver_* backend it does have.
type UnknownConnectionError struct {
	Driver    string
	Link      string
	Available []string
}

func (e *UnknownConnectionError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s has no %s backend and no backends at all", e.Driver, BackendName(e.Link))
	}
	return fmt.Sprintf("%s has no %s backend; available: %s",
		e.Driver, BackendName(e.Link), strings.Join(e.Available, ", "))
}

// UnexpectedParamError is returned when parameters were passed that neither
// the backend nor the driver read.
type UnexpectedParamError struct {
	Driver string
	Params []string
}

func (e *UnexpectedParamError) Error() string {
	return fmt.Sprintf("%s: unexpected parameters: %s", e.Driver, strings.Join(e.Params, ", "))
}
