package future

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cronfuture/cronfuture/cronengine"
)

// Registry is spec §6's onScheduled/onDescheduled collaborator: it tracks
// every live Future by its RegistryKey, and removes a handle from that
// tracking the moment the handle itself reports it is done, regardless of
// why (cancellation or maxCalls exhaustion). Because Go forbids a generic
// method on a non-generic receiver, construction goes through the
// package-level Schedule function instead of a Registry method.
type Registry struct {
	engine CronEngine
	parser cronengine.ScheduleParser
	clock  cronengine.Clock

	logger Logger
	pool   *WorkerPool
	timers TimerService

	mu    sync.Mutex
	byKey map[uuid.UUID]Future
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the Logger new handles inherit by default.
func WithRegistryLogger(l Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryWorkerPool sets the WorkerPool new handles inherit by default.
func WithRegistryWorkerPool(p *WorkerPool) RegistryOption {
	return func(r *Registry) {
		if p != nil {
			r.pool = p
		}
	}
}

// WithRegistryClock overrides the cronengine.Clock used both for the
// registry's own AddJob-less bookkeeping and as the default delayed-start
// TimerService's clock. Intended for tests, via cronengine.FakeClock.
func WithRegistryClock(c cronengine.Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
			r.timers = NewClockTimerService(c)
		}
	}
}

// NewRegistry creates a Registry that schedules against engine, parsing
// cron fields with parser. A *cronengine.Cron created with
// cronengine.WithParser(parser) should generally be passed as both engine
// and the source of parser, so prediction and registration agree on
// grammar.
func NewRegistry(engine CronEngine, parser cronengine.ScheduleParser, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine: engine,
		parser: parser,
		clock:  cronengine.RealClock{},
		logger: DefaultLogger,
		byKey:  make(map[uuid.UUID]Future),
	}
	r.pool = NewWorkerPool(0, r.logger)
	r.timers = NewClockTimerService(r.clock)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule parses pattern, constructs a Handle[R] wrapping task, registers
// it with the registry's cron engine (immediately, or after pattern's
// delay elapses), and tracks it until it becomes done. It is a package-level
// function rather than a Registry method because Go does not allow a
// method with its own type parameter on a non-generic receiver.
func Schedule[R any](reg *Registry, pattern string, task Task[R], opts ...Option[R]) (*Handle[R], error) {
	parsed, err := ParsePattern(pattern, validatorFor(reg.parser))
	if err != nil {
		return nil, err
	}
	schedule, err := reg.parser.Parse(parsed.Cron)
	if err != nil {
		return nil, fmt.Errorf("future: parse cron field %q: %w", parsed.Cron, err)
	}

	allOpts := append([]Option[R]{
		WithLogger[R](reg.logger),
		WithWorkerPool[R](reg.pool),
		WithTimerService[R](reg.timers),
		withClockOption[R](reg.clock),
		onDescheduledOption[R](reg.onDescheduled),
	}, opts...)

	h := newHandle(parsed, task, reg.engine, schedule, reg.clock.Now(), allOpts...)

	reg.mu.Lock()
	reg.byKey[h.key] = h
	reg.mu.Unlock()

	h.start()
	return h, nil
}

// onDescheduled removes a Future from the registry's tracking once it
// becomes done, mirroring spec §6's "registry collaborator removes the
// entry from its tracking" step of the Exit phase.
func (r *Registry) onDescheduled(f Future) {
	r.mu.Lock()
	delete(r.byKey, f.RegistryKey())
	r.mu.Unlock()
}

// Lookup returns the Future registered under key, if any.
func (r *Registry) Lookup(key uuid.UUID) (Future, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byKey[key]
	return f, ok
}

// All returns every Future currently tracked by the registry, in no
// particular order.
func (r *Registry) All() []Future {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Future, 0, len(r.byKey))
	for _, f := range r.byKey {
		out = append(out, f)
	}
	return out
}

// Shutdown cancels every tracked Future and waits for each to report done,
// or for ctx to be cancelled first. It fans the cancel-and-wait out
// concurrently across every tracked Future via errgroup, so Shutdown's
// wall-clock cost is the slowest single handle's in-flight tick, not the
// sum of all of them.
func (r *Registry) Shutdown(ctx context.Context) error {
	for _, f := range r.All() {
		f.Cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range r.All() {
		f := f
		g.Go(func() error {
			select {
			case <-f.DoneChan():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}
