package monitoring

import "github.com/jonboulle/clockwork"

// Option configures an Alerter, Checker or Collector.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock sets the clock used for tickers and timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func applyOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	return o
}
