package player

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/observability"
)

// DefaultInterval is the delay between polls.
const DefaultInterval = time.Second

// Notifier receives the merged State whenever it changes.
type Notifier interface {
	OnPlayerStateChanged(State)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(State)

// OnPlayerStateChanged calls f(s).
func (f NotifierFunc) OnPlayerStateChanged(s State) { f(s) }

// Notifiers delivers to each Notifier in order.
type Notifiers []Notifier

// OnPlayerStateChanged implements Notifier.
func (ns Notifiers) OnPlayerStateChanged(s State) {
	for _, n := range ns {
		n.OnPlayerStateChanged(s)
	}
}

// Watcher polls its sources on a fixed interval, merges every candidate
// Update, and notifies once per net change of the merged State.
//
// Invariant: the Watcher goroutine is the only writer of the merge state and
// the only caller of the Notifier, so notifications never overlap.
type Watcher struct {
	interval time.Duration
	sources  []Source
	merger   *Merger
	notifier Notifier
	logger   *zap.Logger
	metrics  *observability.Metrics

	lastReported Opt[State]
}

// NewWatcher creates a Watcher over sources.
//
// Precondition: notifier and logger must be non-nil; metrics may be nil.
// Postcondition: Returns a Watcher whose State is empty; interval <= 0 uses
// DefaultInterval.
func NewWatcher(interval time.Duration, notifier Notifier, logger *zap.Logger, metrics *observability.Metrics, sources ...Source) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		interval: interval,
		sources:  sources,
		merger:   NewMerger(),
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start runs the poll loop on its own goroutine and returns immediately.
func (w *Watcher) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run polls until ctx is cancelled. No error inside a tick ends the loop.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("player watcher started",
		zap.Duration("interval", w.interval),
		zap.Int("sources", len(w.sources)),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("player watcher stopped")
			return
		case <-timer.C:
			w.Tick(ctx)
			timer.Reset(w.interval)
		}
	}
}

// Tick polls every source once, merges the candidates in the order found, and
// notifies if the merged State differs from the last one reported.
//
// Postcondition: Returns true iff the Notifier was called. Panics are
// recovered and logged.
func (w *Watcher) Tick(ctx context.Context) (notified bool) {
	w.metrics.TickStarted()
	defer func() {
		if r := recover(); r != nil {
			w.metrics.TickFailed()
			w.logger.Error("player watcher tick panicked", zap.Error(fmt.Errorf("%v", r)))
			notified = false
		}
	}()

	for _, src := range w.sources {
		updates, err := src.Poll(ctx)
		if err != nil {
			w.metrics.SourceFailed(src.Name())
			w.logger.Warn("polling source", zap.String("source", src.Name()), zap.Error(err))
		}
		for _, u := range updates {
			w.apply(u)
		}
	}

	st := w.merger.State()
	if prev, ok := w.lastReported.Get(); ok && prev.Equal(st) {
		return false
	}
	w.lastReported = Some(st)
	w.logger.Info("player state changed", zap.Stringer("state", st))
	w.metrics.Notified()
	w.notifier.OnPlayerStateChanged(st)
	return true
}

func (w *Watcher) apply(u Update) {
	applied := w.merger.Apply(u)
	for _, f := range Fields {
		if !u.Fields.Has(f) {
			continue
		}
		w.metrics.Candidate(u.Source, fieldName(f), applied.Has(f))
	}
	if applied != FieldNone {
		w.logger.Debug("applied update",
			zap.String("source", u.Source),
			zap.Time("at", u.At),
			zap.Stringer("fields", applied),
		)
	}
}

// State returns the current merged State. It must only be called from the
// goroutine running Tick, or after Run has returned.
func (w *Watcher) State() State {
	return w.merger.State()
}
