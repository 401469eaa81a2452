package instrument

import (
	"context"

	"github.com/OpenTraceLab/labctl/pkg/transport"
)

// Builder turns an open transport into a driver instance.
type Builder func(t transport.Transport, c Conn) (Instance, error)

// Backend returns a factory that opens a transport on link and hands it to
// build. The transport is closed again if build fails.
func Backend(link string, build Builder) Factory {
	return func(ctx context.Context, c Conn) (Instance, error) {
		t, err := transport.Open(ctx, link, c.Address, c.Params)
		if err != nil {
			return nil, err
		}
		if c.Wrap != nil {
			t = c.Wrap(t)
		}
		inst, err := build(t, c)
		if err != nil {
			t.Close()
			return nil, err
		}
		return inst, nil
	}
}

// Over declares the same builder on several links, which is how most
// SCPI drivers are registered.
func Over(build Builder, links ...string) map[string]Factory {
	out := make(map[string]Factory, len(links))
	for _, link := range links {
		out[link] = Backend(link, build)
	}
	return out
}
