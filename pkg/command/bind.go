package command

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/catalog"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// bind turns the arguments of tok into the call arguments of m. Positional
// arguments fill parameters left to right, keywords fill them by name, and a
// variadic tail takes surplus positionals. A leading context.Context
// parameter receives ctx.
func bind(ctx context.Context, m *catalog.Method, tok Token) ([]reflect.Value, error) {
	ft := m.Func.Type()
	argErr := func(format string, a ...any) error {
		return &ArgumentError{Path: tok.Path, Msg: fmt.Sprintf(format, a...)}
	}

	var in []reflect.Value
	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}
	nParams := ft.NumIn() - offset
	fixed := nParams
	if ft.IsVariadic() {
		fixed--
	}
	if m.Params != nil && len(m.Params) != nParams {
		return nil, argErr("driver declares %d parameter names for %d parameters", len(m.Params), nParams)
	}

	slots := make([]*Arg, fixed)
	var extra []Arg
	npos := 0
	for i := range tok.Args {
		a := &tok.Args[i]
		if a.Key != "" {
			continue
		}
		switch {
		case npos < fixed:
			slots[npos] = a
		case ft.IsVariadic():
			extra = append(extra, *a)
		default:
			return nil, argErr("takes %d positional arguments but %d were given", fixed, tok.positional())
		}
		npos++
	}

	for i := range tok.Args {
		a := &tok.Args[i]
		if a.Key == "" {
			continue
		}
		if m.Params == nil {
			return nil, argErr("does not accept keyword arguments (got %s=)", a.Key)
		}
		idx := indexOf(m.Params, a.Key)
		switch {
		case idx < 0:
			return nil, argErr("unexpected keyword argument %q (parameters: %s)", a.Key, strings.Join(m.Params, ", "))
		case idx >= fixed:
			return nil, argErr("variadic parameter %q cannot be passed by keyword", a.Key)
		case slots[idx] != nil:
			return nil, argErr("got multiple values for argument %q", a.Key)
		}
		slots[idx] = a
	}

	for i, a := range slots {
		if a == nil {
			return nil, argErr("missing argument %s", paramName(m, i))
		}
		v, err := convert(a.Value, ft.In(offset+i))
		if err != nil {
			return nil, argErr("argument %s: %v", paramName(m, i), err)
		}
		in = append(in, v)
	}
	if ft.IsVariadic() {
		et := ft.In(ft.NumIn() - 1).Elem()
		for _, a := range extra {
			v, err := convert(a.Value, et)
			if err != nil {
				return nil, argErr("argument %q: %v", a.Raw, err)
			}
			in = append(in, v)
		}
	}
	return in, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func paramName(m *catalog.Method, i int) string {
	if i < len(m.Params) {
		return fmt.Sprintf("%q", m.Params[i])
	}
	return fmt.Sprintf("#%d", i+1)
}

// convert coerces v into a value of type t.
func convert(v Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	mismatch := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("cannot use %s %s as %s", v.Kind, v.display(), t)
	}

	switch t.Kind() {
	case reflect.Interface:
		if v.Kind == Null {
			return out, nil
		}
		iv := reflect.ValueOf(v.Interface())
		if !iv.Type().AssignableTo(t) {
			return mismatch()
		}
		out.Set(iv)

	case reflect.String:
		// Numbers keep their coerced form: 0x10 reaches a string
		// parameter as "16".
		out.SetString(v.String())

	case reflect.Bool:
		switch {
		case v.Kind == Bool:
			out.SetBool(v.B)
		case v.Kind == Int && (v.I == 0 || v.I == 1):
			out.SetBool(v.I == 1)
		default:
			return mismatch()
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := integral(v)
		if !ok || out.OverflowInt(n) {
			return mismatch()
		}
		out.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := integral(v)
		if !ok || n < 0 || out.OverflowUint(uint64(n)) {
			return mismatch()
		}
		out.SetUint(uint64(n))

	case reflect.Float32, reflect.Float64:
		var f float64
		switch v.Kind {
		case Int:
			f = float64(v.I)
		case Float:
			f = v.F
		default:
			return mismatch()
		}
		if out.OverflowFloat(f) {
			return mismatch()
		}
		out.SetFloat(f)

	case reflect.Slice:
		if v.Kind == Null {
			return out, nil
		}
		if v.Kind != List {
			return mismatch()
		}
		s := reflect.MakeSlice(t, 0, len(v.L))
		for _, it := range v.L {
			ev, err := convert(it, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			s = reflect.Append(s, ev)
		}
		out.Set(s)

	case reflect.Array:
		if v.Kind != List || len(v.L) != t.Len() {
			return mismatch()
		}
		for i, it := range v.L {
			ev, err := convert(it, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}

	case reflect.Map:
		if v.Kind == Null {
			return out, nil
		}
		if v.Kind != Dict || t.Key().Kind() != reflect.String {
			return mismatch()
		}
		m := reflect.MakeMapWithSize(t, len(v.D))
		for k, it := range v.D {
			ev, err := convert(it, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			kv := reflect.New(t.Key()).Elem()
			kv.SetString(k)
			m.SetMapIndex(kv, ev)
		}
		out.Set(m)

	case reflect.Pointer:
		if v.Kind == Null {
			return out, nil
		}
		ev, err := convert(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(ev)
		out.Set(p)

	default:
		return mismatch()
	}
	return out, nil
}

// integral returns v as an int64 when it is an integer or a float with no
// fractional part.
func integral(v Value) (int64, bool) {
	switch v.Kind {
	case Int:
		return v.I, true
	case Float:
		if v.F != math.Trunc(v.F) || v.F > math.MaxInt64 || v.F < math.MinInt64 {
			return 0, false
		}
		return int64(v.F), true
	}
	return 0, false
}

func (v Value) display() string {
	if v.Raw != "" {
		return fmt.Sprintf("%q", v.Raw)
	}
	return v.repr()
}

// results splits the return values of a call into surfaced values and the
// trailing error, if any.
func results(ft reflect.Type, out []reflect.Value) ([]any, error) {
	n := len(out)
	var err error
	if n > 0 && ft.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		n--
	}
	if n == 0 {
		return nil, err
	}
	values := make([]any, n)
	for i := 0; i < n; i++ {
		values[i] = out[i].Interface()
	}
	return values, err
}
