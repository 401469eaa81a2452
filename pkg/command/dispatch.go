// Package command parses textual commands and runs them against the method
// catalog of a driver instance.
//
// A command is a list of items: a catalog path such as "I.amplitude" or
// "I.channel1.frequency", then its arguments, each either a bare positional
// value or key=value. Values are read as literals when they parse as one
// (numbers, True/False/None, quoted strings, lists, dicts) and kept as plain
// strings otherwise.
package command

import (
	"context"
	"io"
	"log/slog"

	"github.com/OpenTraceLab/labctl/pkg/catalog"
)

// Result is what one command returned. Values is empty for methods that
// return nothing but a nil error.
type Result struct {
	Path   string
	Values []any
}

// Dispatcher runs commands against one catalog.
type Dispatcher struct {
	cat *catalog.Catalog
	log *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger commands are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// New returns a dispatcher for c.
func New(c *catalog.Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cat: c,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Catalog returns the catalog commands are resolved against.
func (d *Dispatcher) Catalog() *catalog.Catalog { return d.cat }

// Exec runs a single command. Unknown paths fail before any argument is
// bound. An error returned by the method itself is passed through as is.
func (d *Dispatcher) Exec(ctx context.Context, tok Token) (*Result, error) {
	m, ok := d.cat.Lookup(tok.Path)
	if !ok {
		return nil, &UnknownMethodError{Attempted: tok.Path, Known: d.cat.Paths()}
	}
	in, err := bind(ctx, m, tok)
	if err != nil {
		return nil, err
	}

	d.log.Debug("exec", "path", tok.Path, "args", len(tok.Args))
	values, err := results(m.Func.Type(), m.Func.Call(in))
	if err != nil {
		d.log.Debug("exec failed", "path", tok.Path, "error", err)
		return nil, err
	}
	return &Result{Path: tok.Path, Values: values}, nil
}

// Run executes tokens in order and stops at the first failure. The results
// of the commands that ran before it are returned with the error. ctx is
// checked between commands, never during one.
func (d *Dispatcher) Run(ctx context.Context, tokens []Token) ([]Result, error) {
	out := make([]Result, 0, len(tokens))
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r, err := d.Exec(ctx, tok)
		if err != nil {
			return out, err
		}
		out = append(out, *r)
	}
	return out, nil
}
