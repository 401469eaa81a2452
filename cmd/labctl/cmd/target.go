package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/index"
	"github.com/OpenTraceLab/labctl/pkg/session"
	"github.com/OpenTraceLab/labctl/pkg/trace"
)

var (
	driverName  string
	linkName    string
	address     string
	paramValues []string
)

// addTargetFlags registers the flags that pick an instrument.
func addTargetFlags(c *cobra.Command) {
	c.Flags().StringVarP(&driverName, "driver", "d", "",
		"Driver name (e.g. Keysight33500B or generators/Keysight33500B) or device index nickname")
	c.Flags().StringVarP(&linkName, "link", "l", "",
		"Connection type (VISA, SOCKET, VXI11, USB, GPIB, SERIAL, TELNET, SIM)")
	c.Flags().StringVarP(&address, "address", "i", "",
		"Instrument address, meaning depends on the link")
	c.Flags().StringArrayVar(&paramValues, "param", nil,
		"Backend parameter as key=value (repeatable)")
	_ = c.MarkFlagRequired("driver")
}

func resetTargetFlags() {
	driverName = ""
	linkName = ""
	address = ""
	paramValues = nil
}

// loadIndex reads the device index. A missing file is only an error when
// the user named it.
func loadIndex() (*index.Index, error) {
	if cfg.IndexPath == "" {
		return nil, nil
	}
	idx, err := index.Load(cfg.IndexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && indexPath == "" {
			logger.Debug("no device index", "path", cfg.IndexPath)
			return nil, nil
		}
		return nil, err
	}
	return idx, nil
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--param %q: expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

// resolveTarget merges the flags with the device index.
func resolveTarget() (index.Target, error) {
	idx, err := loadIndex()
	if err != nil {
		return index.Target{}, err
	}
	params, err := parseParams(paramValues)
	if err != nil {
		return index.Target{}, err
	}
	t, err := index.Select(idx, index.Selection{
		Driver:  driverName,
		Link:    linkName,
		Address: address,
		Params:  params,
	})
	if err != nil {
		return index.Target{}, err
	}
	if _, ok := t.Params["timeout"]; !ok && cfg.Timeout.Duration > 0 {
		t.Params["timeout"] = cfg.Timeout.String()
	}
	logger.Debug("target resolved",
		"nickname", t.Nickname, "driver", t.Driver, "link", t.Link, "address", t.Address)
	return t, nil
}

// openTrace returns the configured trace sink, or nil when tracing is off.
// The returned func closes it.
func openTrace() (trace.Sink, func(), error) {
	if cfg.TracePath == "" {
		return nil, func() {}, nil
	}
	w, err := trace.OpenFile(cfg.TracePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace: %w", err)
	}
	return w, func() {
		if err := w.Close(); err != nil {
			logger.Warn("close trace", "err", err)
		}
	}, nil
}

// sessionOptions resolves the target and opens the trace.
func sessionOptions() (session.Options, func(), error) {
	t, err := resolveTarget()
	if err != nil {
		return session.Options{}, nil, err
	}
	sink, done, err := openTrace()
	if err != nil {
		return session.Options{}, nil, err
	}
	return session.Options{Target: t, Trace: sink, Logger: logger}, done, nil
}
