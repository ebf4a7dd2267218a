package provider

import (
	"context"
	"math/rand"
	"time"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
)

// pollStatus drives a query function on a fixed interval until the context
// is done or a terminal status is delivered. Query errors are swallowed to
// keep polling alive; they already carry provider detail for the log line.
func pollStatus(ctx context.Context, interval time.Duration, identifier string,
	query func(context.Context) (Status, error), fn func(Status)) {

	l := logging.FromCtx(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		st, err := query(ctx)
		if err != nil {
			l.Warn("status poll failed", "identifier", identifier, "err", err)
			continue
		}
		fn(st)
		if st.Canonical.Terminal() {
			return
		}
	}
}

// backoff produces reconnect delays for long-lived watcher connections:
// exponential from initial up to max, with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max}
}

func (b *backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	// up to 25% jitter
	j := time.Duration(rand.Int63n(int64(b.current)/4 + 1))
	return b.current + j
}

func (b *backoff) Reset() { b.current = 0 }
