package index

import (
	"fmt"
	"strings"
)

// Selection is what the user asked for on the command line. Empty fields
// were not given.
type Selection struct {
	Driver  string
	Link    string
	Address string
	Params  map[string]string
}

// Target is a fully resolved instrument to open.
type Target struct {
	Nickname string // set when Driver named an index entry
	Driver   string
	Link     string
	Address  string
	Params   map[string]string
}

// MissingInputError is returned when link or address is neither given nor
// found in the index. Missing holds exactly the absent inputs.
type MissingInputError struct {
	Driver  string
	Missing []string
}

func (e *MissingInputError) Error() string {
	flags := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		flags[i] = "--" + m
	}
	return fmt.Sprintf("%s is not in the device index and needs %s", e.Driver, strings.Join(flags, " and "))
}

// Select applies the resolution policy. When sel.Driver names an index entry
// the entry supplies defaults and every explicitly given value wins, params
// key by key; a value neither given nor in the entry stays empty for the
// backend to accept or reject. Otherwise sel.Driver is a driver name and both
// link and address must be given. idx may be nil.
func Select(idx *Index, sel Selection) (Target, error) {
	t := Target{
		Driver:  sel.Driver,
		Link:    sel.Link,
		Address: sel.Address,
		Params:  map[string]string{},
	}
	if e, ok := idx.Resolve(sel.Driver); ok {
		t.Nickname = e.Name
		t.Driver = e.Driver
		if t.Link == "" {
			t.Link = e.Connection
		}
		if t.Address == "" {
			t.Address = e.Address
		}
		for k, v := range e.Params {
			t.Params[k] = v
		}
		mergeParams(t.Params, sel.Params)
		return t, nil
	}
	mergeParams(t.Params, sel.Params)

	var missing []string
	if t.Link == "" {
		missing = append(missing, "link")
	}
	if t.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return Target{}, &MissingInputError{Driver: sel.Driver, Missing: missing}
	}
	return t, nil
}

func mergeParams(dst, explicit map[string]string) {
	for k, v := range explicit {
		dst[strings.ToLower(k)] = v
	}
}
