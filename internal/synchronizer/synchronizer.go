// Package synchronizer keeps the client's list of study sessions and reconciles it with the
// remote store. Writes made while the store is unreachable are queued locally and sent in
// one batch on the next sync.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/stats"
	"github.com/limbo/studytrack/pkg/entity"
)

type Synchronizer struct {
	remote   RemoteStore
	identity Identity
	queue    LocalQueue
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	sessions []entity.Session
	// mirror of the durable pending queue, records of every user
	pending []entity.Session
	loading bool
	syncing bool
	// newest fetch that was started
	fetchSeq atomic.Uint64
}

type Option func(*Synchronizer)

func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) {
		s.notifier = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// New restores the pending queue from the local store. The session list stays empty until the first Fetch.
func New(remote RemoteStore, identity Identity, queue LocalQueue, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		remote:   remote,
		identity: identity,
		queue:    queue,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = logNotifier(s.logger)
	}
	s.pending = queue.LoadPending(context.Background())
	return s
}

func logNotifier(logger *slog.Logger) Notifier {
	return NotifierFunc(func(n Notice) {
		attrs := []any{slog.String("level", n.Level.String())}
		if n.Err != nil {
			attrs = append(attrs, slog.String("error", n.Err.Error()))
		}
		logger.Info(n.Message, attrs...)
	})
}

// notify must be called without mu held.
func (s *Synchronizer) notify(level Level, msg string, err error) {
	s.notifier.Notify(Notice{Level: level, Message: msg, Err: err})
}

// Sessions returns a copy of the current list, most recent first.
func (s *Synchronizer) Sessions() []entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Session(nil), s.sessions...)
}

func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Synchronizer) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// PendingCount is the number of queued sessions of the signed-in user.
func (s *Synchronizer) PendingCount() int {
	uid, ok := s.identity.CurrentUser()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(ownedBy(s.pending, uid))
}

// Stats aggregates the current list as one consistent snapshot.
func (s *Synchronizer) Stats(days int, loc *time.Location) entity.StatsReport {
	return stats.Report(s.Sessions(), days, s.now(), loc)
}

func ownedBy(sessions []entity.Session, uid uuid.UUID) []entity.Session {
	result := make([]entity.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.UserID == uid {
			result = append(result, session)
		}
	}
	return result
}

func confirmed(sessions []entity.Session) []entity.Session {
	result := make([]entity.Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.ID.IsPending() {
			result = append(result, session)
		}
	}
	return result
}

func sortByStartedAt(sessions []entity.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
}

// merged places the user's queued records among confirmed ones, most recent first.
func (s *Synchronizer) merged(base []entity.Session, uid uuid.UUID) []entity.Session {
	list := make([]entity.Session, 0, len(base)+len(s.pending))
	list = append(list, ownedBy(s.pending, uid)...)
	list = append(list, confirmed(base)...)
	sortByStartedAt(list)
	return list
}

// saveSnapshot must be called with mu held.
func (s *Synchronizer) saveSnapshot(ctx context.Context) {
	s.queue.SaveSnapshot(ctx, confirmed(s.sessions))
}

// savePending must be called with mu held.
func (s *Synchronizer) savePending(ctx context.Context) {
	if len(s.pending) == 0 {
		s.queue.ClearPending(ctx)
		return
	}
	s.queue.SavePending(ctx, s.pending)
}

// Fetch replaces the list with the store's copy. When the store can't be read the last
// snapshot is shown instead. A fetch that resolves after a newer one was started is dropped.
func (s *Synchronizer) Fetch(ctx context.Context) {
	seq := s.fetchSeq.Add(1)
	uid, ok := s.identity.CurrentUser()
	if !ok {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	remote, err := s.remote.ListSessions(ctx, uid)

	s.mu.Lock()
	if seq != s.fetchSeq.Load() {
		s.mu.Unlock()
		s.logger.Debug("stale fetch dropped", slog.Uint64("seq", seq))
		return
	}
	s.loading = false
	if err != nil {
		s.sessions = s.merged(ownedBy(s.queue.LoadSnapshot(ctx), uid), uid)
		s.mu.Unlock()
		s.logger.Error("fetching sessions error", slog.String("error", err.Error()))
		s.notify(LevelWarning, "operating offline: showing locally saved sessions", err)
		return
	}
	s.sessions = s.merged(remote, uid)
	s.saveSnapshot(ctx)
	s.mu.Unlock()
}

// Refresh is an explicit user-triggered Fetch.
func (s *Synchronizer) Refresh(ctx context.Context) {
	s.Fetch(ctx)
}

// Add stores a new session. If the store can't take it, the session is queued under a
// temporary id and reported as saved for later; only identity and validation errors are returned.
func (s *Synchronizer) Add(ctx context.Context, form entity.SessionForm) (entity.Session, error) {
	uid, ok := s.identity.CurrentUser()
	if !ok {
		s.notify(LevelError, "sign in to record sessions", errorvalues.ErrUnauthenticated)
		return entity.Session{}, errorvalues.ErrUnauthenticated
	}
	if err := validateForm(form); err != nil {
		s.notify(LevelError, "session not saved", err)
		return entity.Session{}, err
	}
	payload := form.Payload(uid)
	created, err := s.remote.CreateSession(ctx, payload)

	if err == nil {
		s.mu.Lock()
		s.sessions = append([]entity.Session{*created}, s.sessions...)
		s.saveSnapshot(ctx)
		s.mu.Unlock()
		s.notify(LevelSuccess, "session saved", nil)
		return *created, nil
	}
	s.logger.Error("creating session error, queueing it", slog.String("error", err.Error()))
	record := entity.Session{
		ID:        entity.NewPendingID(),
		UserID:    uid,
		Subject:   payload.Subject,
		Minutes:   payload.Minutes,
		StartedAt: payload.StartedAt,
		Note:      payload.Note,
		CreatedAt: s.now(),
		Synced:    false,
	}
	s.mu.Lock()
	s.sessions = append([]entity.Session{record}, s.sessions...)
	s.pending = append(s.pending, record)
	s.savePending(ctx)
	s.mu.Unlock()
	s.notify(LevelWarning, "saved on this device, will sync later", err)
	return record, nil
}

// Update changes a session the store already knows. Queued sessions can't be updated.
func (s *Synchronizer) Update(ctx context.Context, id entity.SessionID, form entity.SessionForm) (entity.Session, error) {
	if id.IsPending() {
		s.notify(LevelError, "session is not synced yet, sync before editing it", errorvalues.ErrPendingSession)
		return entity.Session{}, errorvalues.ErrPendingSession
	}
	uid, ok := s.identity.CurrentUser()
	if !ok {
		s.notify(LevelError, "sign in to edit sessions", errorvalues.ErrUnauthenticated)
		return entity.Session{}, errorvalues.ErrUnauthenticated
	}
	if err := validateForm(form); err != nil {
		s.notify(LevelError, "session not updated", err)
		return entity.Session{}, err
	}
	updated, err := s.remote.UpdateSession(ctx, id.Value(), form.Payload(uid))
	if err != nil {
		s.logger.Error("updating session error", slog.String("id", id.String()), slog.String("error", err.Error()))
		s.notify(LevelError, "session not updated", err)
		return entity.Session{}, fmt.Errorf("updating session %s: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i] = *updated
			break
		}
	}
	s.saveSnapshot(ctx)
	s.mu.Unlock()
	s.notify(LevelSuccess, "session updated", nil)
	return *updated, nil
}

// Delete removes a session. Queued sessions are discarded locally without asking the store.
func (s *Synchronizer) Delete(ctx context.Context, id entity.SessionID) error {
	if id.IsPending() {
		return s.discardPending(ctx, id)
	}
	if _, ok := s.identity.CurrentUser(); !ok {
		s.notify(LevelError, "sign in to delete sessions", errorvalues.ErrUnauthenticated)
		return errorvalues.ErrUnauthenticated
	}
	if err := s.remote.DeleteSession(ctx, id.Value()); err != nil {
		s.logger.Error("deleting session error", slog.String("id", id.String()), slog.String("error", err.Error()))
		s.notify(LevelError, "session not deleted", err)
		return fmt.Errorf("deleting session %s: %w", id, err)
	}

	s.mu.Lock()
	s.sessions = without(s.sessions, id)
	s.saveSnapshot(ctx)
	s.mu.Unlock()
	s.notify(LevelSuccess, "session deleted", nil)
	return nil
}

func without(sessions []entity.Session, id entity.SessionID) []entity.Session {
	result := make([]entity.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.ID != id {
			result = append(result, session)
		}
	}
	return result
}

func (s *Synchronizer) discardPending(ctx context.Context, id entity.SessionID) error {
	s.mu.Lock()
	before := len(s.pending)
	s.pending = without(s.pending, id)
	s.sessions = without(s.sessions, id)
	found := len(s.pending) != before
	if found {
		s.savePending(ctx)
	}
	s.mu.Unlock()
	if !found {
		s.notify(LevelError, "session not found", errorvalues.ErrSessionNotFound)
		return errorvalues.ErrSessionNotFound
	}
	s.notify(LevelSuccess, "unsynced session discarded", nil)
	return nil
}

// SyncPending sends every queued session of the signed-in user in one batch. Either the
// whole batch is promoted to confirmed records or nothing changes.
func (s *Synchronizer) SyncPending(ctx context.Context) error {
	uid, ok := s.identity.CurrentUser()
	if !ok {
		return nil
	}
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return errorvalues.ErrSyncInProgress
	}
	batch := ownedBy(s.pending, uid)
	if len(batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.syncing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	payloads := make([]entity.SessionPayload, 0, len(batch))
	for i := range batch {
		payloads = append(payloads, batch[i].Payload())
	}
	created, err := s.remote.CreateSessions(ctx, payloads)
	if err != nil {
		s.logger.Error("syncing pending sessions error", slog.Int("count", len(batch)), slog.String("error", err.Error()))
		s.notify(LevelError, "sync failed, sessions stay on this device", err)
		return fmt.Errorf("syncing %d sessions: %w", len(batch), err)
	}

	// a fetch that resolved while the batch was in flight may already list the created records
	synced := make(map[entity.SessionID]struct{}, len(batch)+len(created))
	for _, session := range batch {
		synced[session.ID] = struct{}{}
	}
	for _, session := range created {
		synced[session.ID] = struct{}{}
	}
	keep := func(sessions []entity.Session) []entity.Session {
		result := make([]entity.Session, 0, len(sessions))
		for _, session := range sessions {
			if _, ok := synced[session.ID]; !ok {
				result = append(result, session)
			}
		}
		return result
	}

	s.mu.Lock()
	// fetches still in flight were answered before the commit
	s.fetchSeq.Add(1)
	s.loading = false
	s.sessions = append(append([]entity.Session(nil), created...), keep(s.sessions)...)
	s.pending = keep(s.pending)
	s.savePending(ctx)
	s.saveSnapshot(ctx)
	s.mu.Unlock()
	s.notify(LevelSuccess, fmt.Sprintf("synced %d sessions", len(created)), nil)
	return nil
}

// clear drops the in-memory list, e.g. after sign-out.
func (s *Synchronizer) clear() {
	s.fetchSeq.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.loading = false
}

// WatchIdentity fetches on sign-in and clears the list on sign-out until ctx is done or events is closed.
func (s *Synchronizer) WatchIdentity(ctx context.Context, events <-chan IdentityEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.SignedIn {
				s.logger.Info("identity available, fetching sessions", slog.String("uid", ev.UserID.String()))
				s.Fetch(ctx)
				continue
			}
			s.logger.Info("signed out, clearing sessions")
			s.clear()
		}
	}
}

// WatchConnectivity syncs the queue and refetches on every connectivity-regained signal.
func (s *Synchronizer) WatchConnectivity(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			s.logger.Info("connectivity regained")
			if err := s.SyncPending(ctx); err != nil && !errors.Is(err, errorvalues.ErrSyncInProgress) {
				continue
			}
			s.Fetch(ctx)
		}
	}
}
