package provider

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/bratushka/cypher/pkg/logging"
)

// WaitOptions tunes WaitReachable.
type WaitOptions struct {
	// Timeout bounds the whole wait. Zero waits until ctx is done.
	Timeout time.Duration
	// MaxInterval caps the delay between two dials.
	MaxInterval time.Duration
}

// WaitReachable blocks until a TCP connection can be opened to every
// address, retrying with exponential backoff. Addresses are host:port.
func WaitReachable(ctx context.Context, addrs []string, opts WaitOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error { return waitOne(ctx, addr, opts) })
	}
	return g.Wait()
}

func waitOne(ctx context.Context, addr string, opts WaitOptions) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0
	if opts.MaxInterval > 0 {
		b.MaxInterval = opts.MaxInterval
	}

	var d net.Dialer
	attempt := 0
	dial := func() error {
		attempt++
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			logging.L().Debugw("database not reachable yet", "addr", addr, "attempt", attempt, "error", err)
			return err
		}
		return conn.Close()
	}

	if err := backoff.Retry(dial, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("waiting for %s: %w", addr, err)
	}
	logging.L().Infow("database reachable", "addr", addr, "attempts", attempt)
	return nil
}
