// Package track records the player's location history.
package track

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/player"
	"github.com/cory-johannsen/sotamapper/internal/storage/postgres"
)

// DefaultWriteTimeout bounds a single history write.
const DefaultWriteTimeout = 2 * time.Second

// Store persists player states.
type Store interface {
	Insert(ctx context.Context, session uuid.UUID, st player.State, at time.Time) (postgres.LocationRecord, error)
}

// Recorder is a player.Notifier writing every known state to a Store under
// one session id per process.
type Recorder struct {
	store   Store
	session uuid.UUID
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRecorder creates a Recorder with a fresh session id.
//
// Precondition: store and logger must be non-nil.
// Postcondition: timeout <= 0 uses DefaultWriteTimeout.
func NewRecorder(store Store, timeout time.Duration, logger *zap.Logger) *Recorder {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	r := &Recorder{
		store:   store,
		session: uuid.New(),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
	r.logger.Info("location history session", zap.Stringer("session", r.session))
	return r
}

// Session returns the id every record is written under.
func (r *Recorder) Session() uuid.UUID {
	return r.session
}

// OnPlayerStateChanged implements player.Notifier. Empty states are not
// recorded; write failures are logged and dropped.
func (r *Recorder) OnPlayerStateChanged(s player.State) {
	if s.Empty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	rec, err := r.store.Insert(ctx, r.session, s, r.now())
	if err != nil {
		r.logger.Warn("recording player state", zap.Stringer("state", s), zap.Error(err))
		return
	}
	r.logger.Debug("recorded player state", zap.Int64("id", rec.ID))
}
