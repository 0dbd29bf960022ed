package sync

import (
	"errors"
	"log/slog"

	"github.com/maestro-bft/maestro/metrics"
	"github.com/maestro-bft/maestro/types"
)

// Ticker schedules a repeating callback; a production implementation
// wraps time.Ticker, tests wrap a virtual clock (mirrors runtime.Timers,
// which schedules one-shot callbacks instead).
type Ticker interface {
	Every(fire func()) (cancel func())
}

// Config accumulates everything an Opt may set (spec.md §4.6 style
// functional options, reused here per SPEC_FULL.md's ambient-stack
// section for every long-lived actor).
type Config struct {
	Log       *slog.Logger
	Transport Transport
	Host      Host
	Consumer  Consumer
	Timers    Timers
	Status    Ticker
	Self      PeerID

	Params    types.ThresholdParams
	BatchSize int
	Scorer    *Scorer

	// Metrics is optional; a nil *metrics.Metrics is a safe no-op.
	Metrics *metrics.Metrics
}

// Opt configures a Sync actor at construction.
type Opt func(*Config) error

func WithLogger(log *slog.Logger) Opt {
	return func(c *Config) error { c.Log = log; return nil }
}

func WithTransport(t Transport) Opt {
	return func(c *Config) error { c.Transport = t; return nil }
}

func WithHost(h Host) Opt {
	return func(c *Config) error { c.Host = h; return nil }
}

func WithConsumer(cons Consumer) Opt {
	return func(c *Config) error { c.Consumer = cons; return nil }
}

func WithTimers(t Timers) Opt {
	return func(c *Config) error { c.Timers = t; return nil }
}

func WithStatusTicker(s Ticker) Opt {
	return func(c *Config) error { c.Status = s; return nil }
}

func WithSelf(p PeerID) Opt {
	return func(c *Config) error { c.Self = p; return nil }
}

func WithThresholdParams(p types.ThresholdParams) Opt {
	return func(c *Config) error { c.Params = p; return nil }
}

func WithBatchSize(n int) Opt {
	return func(c *Config) error { c.BatchSize = n; return nil }
}

func WithScorer(s *Scorer) Opt {
	return func(c *Config) error { c.Scorer = s; return nil }
}

func WithMetrics(m *metrics.Metrics) Opt {
	return func(c *Config) error { c.Metrics = m; return nil }
}

func (c *Config) validate() error {
	var err error
	if c.Log == nil {
		err = errors.Join(err, errors.New("no logger set (use sync.WithLogger)"))
	}
	if c.Transport == nil {
		err = errors.Join(err, errors.New("no transport set (use sync.WithTransport)"))
	}
	if c.Host == nil {
		err = errors.Join(err, errors.New("no host set (use sync.WithHost)"))
	}
	if c.Consumer == nil {
		err = errors.Join(err, errors.New("no consumer set (use sync.WithConsumer)"))
	}
	if c.Timers == nil {
		err = errors.Join(err, errors.New("no timers set (use sync.WithTimers)"))
	}
	if c.Status == nil {
		err = errors.Join(err, errors.New("no status ticker set (use sync.WithStatusTicker)"))
	}
	if c.BatchSize <= 0 {
		err = errors.Join(err, errors.New("batch size must be positive (use sync.WithBatchSize)"))
	}
	if c.Params.Quorum == (types.Ratio{}) {
		err = errors.Join(err, errors.New("no threshold params set (use sync.WithThresholdParams)"))
	}
	return err
}
