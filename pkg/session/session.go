// Package session ties one instrument to one run of commands: open the
// driver, build its catalog, dispatch, and close the transport on every
// exit path.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/labctl/pkg/catalog"
	"github.com/OpenTraceLab/labctl/pkg/command"
	"github.com/OpenTraceLab/labctl/pkg/index"
	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/trace"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

// Options describes a session.
type Options struct {
	Registry *instrument.Registry // nil uses instrument.Default
	Target   index.Target
	Commands []command.Token
	Trace    trace.Sink
	Logger   *slog.Logger
}

// Report is the outcome of Run.
type Report struct {
	ID      string
	Target  index.Target
	Results []command.Result
	Elapsed time.Duration
}

// Session is an open instrument with its catalog.
type Session struct {
	ID     string
	Target index.Target

	inst   instrument.Instance
	cat    *catalog.Catalog
	disp   *command.Dispatcher
	log    *slog.Logger
	closed bool
}

// Open opens the target and builds its catalog. The caller must Close the
// session.
func Open(ctx context.Context, opts Options) (*Session, error) {
	reg := opts.Registry
	if reg == nil {
		reg = instrument.Default
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.NewString()
	log = log.With("session", id)

	t := opts.Target
	req := instrument.OpenRequest{
		Driver:  t.Driver,
		Link:    t.Link,
		Address: t.Address,
		Params:  t.Params,
	}
	if opts.Trace != nil {
		sink := opts.Trace
		req.Wrap = func(tr transport.Transport) transport.Transport {
			return transport.Traced(tr, sink, id, t.Link, t.Address)
		}
	}

	log.Info("opening", "driver", t.Driver, "link", t.Link, "address", t.Address, "nickname", t.Nickname)
	inst, err := reg.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Build(inst)
	if err != nil {
		inst.Close()
		return nil, fmt.Errorf("session: %w", err)
	}
	log.Debug("catalog built", "methods", cat.Len(), "submodules", len(cat.Submodules()))

	return &Session{
		ID:     id,
		Target: t,
		inst:   inst,
		cat:    cat,
		disp:   command.New(cat, command.WithLogger(log)),
		log:    log,
	}, nil
}

// Catalog returns the method catalog of the open instance.
func (s *Session) Catalog() *catalog.Catalog { return s.cat }

// Instance returns the driver instance.
func (s *Session) Instance() instrument.Instance { return s.inst }

// Exec runs one command.
func (s *Session) Exec(ctx context.Context, tok command.Token) (*command.Result, error) {
	r, err := s.disp.Exec(ctx, tok)
	if err != nil {
		s.log.Warn("command failed", "command", tok.String(), "error", err)
		return nil, err
	}
	s.log.Info("command", "command", tok.String(), "values", len(r.Values))
	return r, nil
}

// Run runs tokens in order and stops at the first failure.
func (s *Session) Run(ctx context.Context, tokens []command.Token) ([]command.Result, error) {
	out := make([]command.Result, 0, len(tokens))
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r, err := s.Exec(ctx, tok)
		if err != nil {
			return out, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// Close releases the instrument. It is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.inst.Close()
	if err != nil {
		s.log.Warn("close failed", "error", err)
	} else {
		s.log.Info("closed")
	}
	return err
}

// Run opens the target, runs opts.Commands and closes the instrument
// whatever happens. A close error is reported only when nothing else
// failed.
func Run(ctx context.Context, opts Options) (rep Report, err error) {
	start := time.Now()
	s, err := Open(ctx, opts)
	if err != nil {
		return Report{Target: opts.Target}, err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
		rep.Elapsed = time.Since(start)
	}()

	rep = Report{ID: s.ID, Target: s.Target}
	rep.Results, err = s.Run(ctx, opts.Commands)
	return rep, err
}
