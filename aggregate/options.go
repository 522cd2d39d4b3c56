package aggregate

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/publish"
	"github.com/krisalay/analytics-cache/types"
)

const (
	DefaultMaxInFlight  = 8
	DefaultFetchTimeout = 10 * time.Second
	DefaultTTL          = 5 * time.Minute
)

// Defaults are the values substituted for an entity none of whose sources
// answered, and for averages no entity contributed to.
type Defaults struct {
	Attendance float64
	Grade      float64
}

// DefaultDefaults mirrors the fallbacks the school dashboards showed.
var DefaultDefaults = Defaults{Attendance: 85, Grade: 75}

type options struct {
	maxInFlight  int
	fetchTimeout time.Duration
	payloadTTL   time.Duration
	entityTTL    time.Duration
	snapshotTTL  time.Duration
	defaults     Defaults
	clock        clockwork.Clock
	logger       *zap.Logger
	metrics      types.Metrics
	sink         publish.Sink
}

func defaultOptions() options {
	return options{
		maxInFlight:  DefaultMaxInFlight,
		fetchTimeout: DefaultFetchTimeout,
		payloadTTL:   DefaultTTL,
		entityTTL:    DefaultTTL,
		snapshotTTL:  DefaultTTL,
		defaults:     DefaultDefaults,
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
		metrics:      types.NoopMetrics{},
		sink:         publish.NewSyncSink(nil),
	}
}

// Option configures an Orchestrator.
type Option func(*options)

// WithMaxInFlight caps concurrent fetches per cycle. Values below 1 are ignored.
func WithMaxInFlight(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxInFlight = n
		}
	}
}

// WithFetchTimeout is used for sources whose FetchSpec has no timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// WithTTLs sets how long payloads, entity stats and the snapshot stay cached.
// 0 keeps an artifact until it is overwritten.
func WithTTLs(payload, entity, snapshot time.Duration) Option {
	return func(o *options) {
		o.payloadTTL, o.entityTTL, o.snapshotTTL = payload, entity, snapshot
	}
}

func WithDefaults(d Defaults) Option {
	return func(o *options) { o.defaults = d }
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m types.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSink sets where published snapshots are delivered.
func WithSink(s publish.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}
