package synchronizer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/localstore"
	"github.com/limbo/studytrack/internal/synchronizer"
	"github.com/limbo/studytrack/internal/synchronizer/mocks"
	"github.com/limbo/studytrack/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userID   = uuid.New()
	now      = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	errNoNet = errors.New("dial tcp: connection refused")
)

type noticeRecorder struct {
	mu      sync.Mutex
	notices []synchronizer.Notice
}

func (r *noticeRecorder) Notify(n synchronizer.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) last() synchronizer.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return synchronizer.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

type fixture struct {
	remote   *mocks.MockRemoteStore
	identity *mocks.MockIdentity
	queue    *localstore.Queue
	notices  *noticeRecorder
	sync     *synchronizer.Synchronizer
}

func setup(t *testing.T, signedIn bool) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		remote:   mocks.NewMockRemoteStore(ctrl),
		identity: mocks.NewMockIdentity(ctrl),
		queue:    localstore.NewQueue(localstore.NewMemoryKV(), nil),
		notices:  &noticeRecorder{},
	}
	if signedIn {
		f.identity.EXPECT().CurrentUser().Return(userID, true).AnyTimes()
	} else {
		f.identity.EXPECT().CurrentUser().Return(uuid.Nil, false).AnyTimes()
	}
	f.sync = synchronizer.New(f.remote, f.identity, f.queue,
		synchronizer.WithNotifier(f.notices),
		synchronizer.WithClock(func() time.Time { return now }),
	)
	return f
}

func form(subject string, minutes int, startedAt time.Time) entity.SessionForm {
	return entity.SessionForm{Subject: subject, Minutes: minutes, StartedAt: startedAt}
}

func confirmedSession(subject string, minutes int, startedAt time.Time) *entity.Session {
	return &entity.Session{
		ID:        entity.ConfirmedID(uuid.NewString()),
		UserID:    userID,
		Subject:   subject,
		Minutes:   minutes,
		StartedAt: startedAt,
		CreatedAt: now,
		Synced:    true,
	}
}

// addOffline queues a session the way Add does when the store is down.
func (f *fixture) addOffline(t *testing.T, subject string, minutes int, startedAt time.Time) entity.Session {
	f.remote.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(nil, errNoNet)
	session, err := f.sync.Add(context.Background(), form(subject, minutes, startedAt))
	require.NoError(t, err)
	return session
}

func (f *fixture) addOnline(t *testing.T, subject string, minutes int, startedAt time.Time) entity.Session {
	created := confirmedSession(subject, minutes, startedAt)
	f.remote.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(created, nil)
	session, err := f.sync.Add(context.Background(), form(subject, minutes, startedAt))
	require.NoError(t, err)
	return session
}

func TestAddOnline(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	created := confirmedSession("math", 30, now.Add(-time.Hour))
	f.remote.EXPECT().CreateSession(gomock.Any(), entity.SessionPayload{
		UserID:    userID,
		Subject:   "math",
		Minutes:   30,
		StartedAt: now.Add(-time.Hour),
	}).Return(created, nil)

	session, err := f.sync.Add(ctx, form("math", 30, now.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, *created, session)
	assert.Equal(t, []entity.Session{*created}, f.sync.Sessions())
	assert.Equal(t, []entity.Session{*created}, f.queue.LoadSnapshot(ctx))
	assert.Empty(t, f.queue.LoadPending(ctx))
	assert.Equal(t, synchronizer.LevelSuccess, f.notices.last().Level)
}

func TestAddOffline(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	before := len(f.sync.Sessions())

	session := f.addOffline(t, "english", 25, now.Add(-2*time.Hour))

	sessions := f.sync.Sessions()
	require.Len(t, sessions, before+1)
	assert.Equal(t, session, sessions[0])
	assert.False(t, session.Synced)
	assert.True(t, session.ID.IsPending())
	assert.True(t, strings.HasPrefix(session.ID.String(), entity.TempIDPrefix))
	assert.Equal(t, now, session.CreatedAt)
	assert.Equal(t, userID, session.UserID)

	pending := f.queue.LoadPending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, session.ID, pending[0].ID)
	assert.Equal(t, 1, f.sync.PendingCount())
	// pending records never go into the snapshot
	assert.Empty(t, f.queue.LoadSnapshot(ctx))

	notice := f.notices.last()
	assert.Equal(t, synchronizer.LevelWarning, notice.Level)
	assert.ErrorIs(t, notice.Err, errNoNet)
}

func TestAddOfflineTokensAreUnique(t *testing.T) {
	f := setup(t, true)
	first := f.addOffline(t, "math", 10, now)
	second := f.addOffline(t, "math", 10, now)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.sync.PendingCount())
}

func TestAddRejected(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		f := setup(t, false)
		_, err := f.sync.Add(context.Background(), form("math", 30, now))
		assert.ErrorIs(t, err, errorvalues.ErrUnauthenticated)
		assert.Empty(t, f.sync.Sessions())
		assert.Empty(t, f.queue.LoadPending(context.Background()))
		assert.Equal(t, synchronizer.LevelError, f.notices.last().Level)
	})
	testCases := []struct {
		Desc string
		Form entity.SessionForm
	}{
		{Desc: "zero minutes", Form: form("math", 0, now)},
		{Desc: "more than a day", Form: form("math", 1441, now)},
		{Desc: "blank subject", Form: form("  ", 30, now)},
		{Desc: "no start", Form: entity.SessionForm{Subject: "math", Minutes: 30}},
		{Desc: "nul in subject", Form: form("ma\x00th", 30, now)},
		{Desc: "invalid utf8 in subject", Form: form("\xffmath", 30, now)},
		{Desc: "nul in note", Form: entity.SessionForm{Subject: "math", Minutes: 30, StartedAt: now, Note: "ch\x003"}},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			f := setup(t, true)
			_, err := f.sync.Add(context.Background(), tc.Form)
			assert.ErrorIs(t, err, errorvalues.ErrInvalidSession)
			assert.Empty(t, f.sync.Sessions())
		})
	}
}

func TestSyncPendingSuccess(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	online := f.addOnline(t, "math", 30, now.Add(-3*time.Hour))
	first := f.addOffline(t, "english", 20, now.Add(-2*time.Hour))
	second := f.addOffline(t, "physics", 40, now.Add(-time.Hour))

	confirmedFirst := confirmedSession("english", 20, first.StartedAt)
	confirmedSecond := confirmedSession("physics", 40, second.StartedAt)
	f.remote.EXPECT().CreateSessions(gomock.Any(), []entity.SessionPayload{first.Payload(), second.Payload()}).
		Return([]entity.Session{*confirmedFirst, *confirmedSecond}, nil)

	require.NoError(t, f.sync.SyncPending(ctx))

	assert.Equal(t, []entity.Session{*confirmedFirst, *confirmedSecond, online}, f.sync.Sessions())
	for _, s := range f.sync.Sessions() {
		assert.False(t, s.ID.IsPending())
		assert.True(t, s.Synced)
	}
	assert.Empty(t, f.queue.LoadPending(ctx))
	assert.Len(t, f.queue.LoadSnapshot(ctx), 3)
	assert.Equal(t, 0, f.sync.PendingCount())
	assert.False(t, f.sync.Syncing())
	assert.Equal(t, synchronizer.LevelSuccess, f.notices.last().Level)
}

func TestSyncPendingFailureChangesNothing(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	f.addOnline(t, "math", 30, now.Add(-3*time.Hour))
	f.addOffline(t, "english", 20, now.Add(-2*time.Hour))
	f.addOffline(t, "physics", 40, now.Add(-time.Hour))
	listBefore := f.sync.Sessions()
	queueBefore := f.queue.LoadPending(ctx)

	f.remote.EXPECT().CreateSessions(gomock.Any(), gomock.Len(2)).Return(nil, errNoNet)
	err := f.sync.SyncPending(ctx)

	assert.ErrorIs(t, err, errNoNet)
	assert.Equal(t, listBefore, f.sync.Sessions())
	assert.Equal(t, queueBefore, f.queue.LoadPending(ctx))
	assert.Equal(t, 2, f.sync.PendingCount())
	assert.False(t, f.sync.Syncing())
	assert.Equal(t, synchronizer.LevelError, f.notices.last().Level)
}

func TestSyncPendingNoop(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		f := setup(t, true)
		assert.NoError(t, f.sync.SyncPending(context.Background()))
	})
	t.Run("no identity", func(t *testing.T) {
		f := setup(t, false)
		assert.NoError(t, f.sync.SyncPending(context.Background()))
	})
}

func TestSyncPendingSkipsOtherUsers(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mocks.NewMockRemoteStore(ctrl)
	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().CurrentUser().Return(userID, true).AnyTimes()
	queue := localstore.NewQueue(localstore.NewMemoryKV(), nil)
	ctx := context.Background()
	foreign := entity.Session{
		ID:        entity.NewPendingID(),
		UserID:    uuid.New(),
		Subject:   "history",
		Minutes:   15,
		StartedAt: now,
		CreatedAt: now,
	}
	queue.SavePending(ctx, []entity.Session{foreign})
	s := synchronizer.New(remote, identity, queue)

	assert.Equal(t, 0, s.PendingCount())
	assert.NoError(t, s.SyncPending(ctx))
	assert.Equal(t, []entity.Session{foreign}, queue.LoadPending(ctx))
}

func TestSyncPendingInProgress(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	f.addOffline(t, "math", 30, now)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.remote.EXPECT().CreateSessions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []entity.SessionPayload) ([]entity.Session, error) {
			close(entered)
			<-release
			return []entity.Session{*confirmedSession("math", 30, now)}, nil
		})

	done := make(chan error, 1)
	go func() {
		done <- f.sync.SyncPending(ctx)
	}()
	<-entered
	assert.True(t, f.sync.Syncing())
	assert.ErrorIs(t, f.sync.SyncPending(ctx), errorvalues.ErrSyncInProgress)
	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.sync.Syncing())
	assert.Equal(t, 0, f.sync.PendingCount())
}

func TestSyncPendingWithOverlappingFetch(t *testing.T) {
	t.Run("fetch resolves before the batch is applied", func(t *testing.T) {
		f := setup(t, true)
		ctx := context.Background()
		queued := f.addOffline(t, "math", 30, now.Add(-time.Hour))
		confirmed := confirmedSession("math", 30, queued.StartedAt)
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).Return([]entity.Session{*confirmed}, nil)
		f.remote.EXPECT().CreateSessions(gomock.Any(), gomock.Len(1)).
			DoAndReturn(func(ctx context.Context, _ []entity.SessionPayload) ([]entity.Session, error) {
				// the server already committed the batch when this fetch lands
				f.sync.Fetch(ctx)
				return []entity.Session{*confirmed}, nil
			})

		require.NoError(t, f.sync.SyncPending(ctx))

		assert.Equal(t, []entity.Session{*confirmed}, f.sync.Sessions())
		assert.Equal(t, []entity.Session{*confirmed}, f.queue.LoadSnapshot(ctx))
		assert.Empty(t, f.queue.LoadPending(ctx))
	})
	t.Run("fetch started before the batch is dropped", func(t *testing.T) {
		f := setup(t, true)
		ctx := context.Background()
		queued := f.addOffline(t, "math", 30, now.Add(-time.Hour))
		confirmed := confirmedSession("math", 30, queued.StartedAt)

		entered := make(chan struct{})
		release := make(chan struct{})
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).
			DoAndReturn(func(context.Context, uuid.UUID) ([]entity.Session, error) {
				close(entered)
				<-release
				return []entity.Session{}, nil
			})
		f.remote.EXPECT().CreateSessions(gomock.Any(), gomock.Len(1)).Return([]entity.Session{*confirmed}, nil)

		done := make(chan struct{})
		go func() {
			f.sync.Fetch(ctx)
			close(done)
		}()
		<-entered
		require.NoError(t, f.sync.SyncPending(ctx))
		close(release)
		<-done

		assert.Equal(t, []entity.Session{*confirmed}, f.sync.Sessions())
		assert.Equal(t, []entity.Session{*confirmed}, f.queue.LoadSnapshot(ctx))
		assert.False(t, f.sync.Loading())
	})
}

func TestFetch(t *testing.T) {
	t.Run("replaces list and mirrors snapshot", func(t *testing.T) {
		f := setup(t, true)
		ctx := context.Background()
		older := confirmedSession("math", 30, now.Add(-48*time.Hour))
		newer := confirmedSession("english", 45, now.Add(-time.Hour))
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).Return([]entity.Session{*older, *newer}, nil)

		f.sync.Fetch(ctx)

		assert.Equal(t, []entity.Session{*newer, *older}, f.sync.Sessions())
		assert.Equal(t, []entity.Session{*newer, *older}, f.queue.LoadSnapshot(ctx))
		assert.False(t, f.sync.Loading())
	})
	t.Run("falls back to snapshot and keeps pending", func(t *testing.T) {
		f := setup(t, true)
		ctx := context.Background()
		saved := confirmedSession("math", 30, now.Add(-48*time.Hour))
		f.queue.SaveSnapshot(ctx, []entity.Session{*saved})
		queued := f.addOffline(t, "english", 20, now.Add(-time.Hour))
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).Return(nil, errNoNet)

		f.sync.Fetch(ctx)

		assert.Equal(t, []entity.Session{queued, *saved}, f.sync.Sessions())
		assert.False(t, f.sync.Loading())
		notice := f.notices.last()
		assert.Equal(t, synchronizer.LevelWarning, notice.Level)
		assert.Contains(t, notice.Message, "offline")
	})
	t.Run("no identity", func(t *testing.T) {
		f := setup(t, false)
		f.sync.Fetch(context.Background())
		assert.Empty(t, f.sync.Sessions())
		assert.False(t, f.sync.Loading())
	})
}

func TestStaleFetchDropped(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	stale := confirmedSession("stale", 10, now.Add(-time.Hour))
	fresh := confirmedSession("fresh", 20, now.Add(-time.Hour))

	entered := make(chan struct{})
	release := make(chan struct{})
	gomock.InOrder(
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).
			DoAndReturn(func(context.Context, uuid.UUID) ([]entity.Session, error) {
				close(entered)
				<-release
				return []entity.Session{*stale}, nil
			}),
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).Return([]entity.Session{*fresh}, nil),
	)

	done := make(chan struct{})
	go func() {
		f.sync.Fetch(ctx)
		close(done)
	}()
	<-entered
	f.sync.Refresh(ctx)
	close(release)
	<-done

	assert.Equal(t, []entity.Session{*fresh}, f.sync.Sessions())
	assert.Equal(t, []entity.Session{*fresh}, f.queue.LoadSnapshot(ctx))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	t.Run("pending id", func(t *testing.T) {
		f := setup(t, true)
		queued := f.addOffline(t, "math", 30, now)
		_, err := f.sync.Update(ctx, queued.ID, form("math", 45, now))
		assert.ErrorIs(t, err, errorvalues.ErrPendingSession)
		assert.Equal(t, 30, f.sync.Sessions()[0].Minutes)
	})
	t.Run("replaced by server copy", func(t *testing.T) {
		f := setup(t, true)
		original := f.addOnline(t, "math", 30, now)
		updated := original
		updated.Minutes = 45
		updated.Note = "chapter 3"
		f.remote.EXPECT().UpdateSession(gomock.Any(), original.ID.Value(), entity.SessionPayload{
			UserID:    userID,
			Subject:   "math",
			Minutes:   45,
			StartedAt: now,
			Note:      "chapter 3",
		}).Return(&updated, nil)

		got, err := f.sync.Update(ctx, original.ID, entity.SessionForm{Subject: "math", Minutes: 45, StartedAt: now, Note: "chapter 3"})
		require.NoError(t, err)
		assert.Equal(t, updated, got)
		assert.Equal(t, []entity.Session{updated}, f.sync.Sessions())
	})
	t.Run("failure leaves list unchanged", func(t *testing.T) {
		f := setup(t, true)
		original := f.addOnline(t, "math", 30, now)
		f.remote.EXPECT().UpdateSession(gomock.Any(), original.ID.Value(), gomock.Any()).Return(nil, errNoNet)

		_, err := f.sync.Update(ctx, original.ID, form("math", 45, now))
		assert.ErrorIs(t, err, errNoNet)
		assert.Equal(t, []entity.Session{original}, f.sync.Sessions())
		assert.Equal(t, synchronizer.LevelError, f.notices.last().Level)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	t.Run("pending is discarded locally", func(t *testing.T) {
		f := setup(t, true)
		kept := f.addOffline(t, "english", 20, now.Add(-time.Hour))
		dropped := f.addOffline(t, "math", 30, now)

		require.NoError(t, f.sync.Delete(ctx, dropped.ID))
		assert.Equal(t, []entity.Session{kept}, f.sync.Sessions())
		pending := f.queue.LoadPending(ctx)
		require.Len(t, pending, 1)
		assert.Equal(t, kept.ID, pending[0].ID)
	})
	t.Run("unknown pending id", func(t *testing.T) {
		f := setup(t, true)
		assert.ErrorIs(t, f.sync.Delete(ctx, entity.NewPendingID()), errorvalues.ErrSessionNotFound)
	})
	t.Run("confirmed is deleted remotely", func(t *testing.T) {
		f := setup(t, true)
		session := f.addOnline(t, "math", 30, now)
		f.remote.EXPECT().DeleteSession(gomock.Any(), session.ID.Value()).Return(nil)

		require.NoError(t, f.sync.Delete(ctx, session.ID))
		assert.Empty(t, f.sync.Sessions())
		assert.Empty(t, f.queue.LoadSnapshot(ctx))
	})
	t.Run("failure keeps the record", func(t *testing.T) {
		f := setup(t, true)
		session := f.addOnline(t, "math", 30, now)
		f.remote.EXPECT().DeleteSession(gomock.Any(), session.ID.Value()).Return(errNoNet)

		assert.ErrorIs(t, f.sync.Delete(ctx, session.ID), errNoNet)
		assert.Equal(t, []entity.Session{session}, f.sync.Sessions())
	})
}

func TestWatchIdentity(t *testing.T) {
	f := setup(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := confirmedSession("math", 30, now)
	f.remote.EXPECT().ListSessions(gomock.Any(), userID).Return([]entity.Session{*session}, nil)

	events := make(chan synchronizer.IdentityEvent)
	done := make(chan struct{})
	go func() {
		f.sync.WatchIdentity(ctx, events)
		close(done)
	}()

	events <- synchronizer.IdentityEvent{UserID: userID, SignedIn: true}
	assert.Eventually(t, func() bool { return len(f.sync.Sessions()) == 1 }, time.Second, 10*time.Millisecond)

	events <- synchronizer.IdentityEvent{UserID: userID, SignedIn: false}
	assert.Eventually(t, func() bool { return len(f.sync.Sessions()) == 0 }, time.Second, 10*time.Millisecond)

	close(events)
	<-done
}

func TestWatchConnectivity(t *testing.T) {
	f := setup(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	f.addOffline(t, "math", 30, now)
	promoted := confirmedSession("math", 30, now)
	gomock.InOrder(
		f.remote.EXPECT().CreateSessions(gomock.Any(), gomock.Len(1)).Return([]entity.Session{*promoted}, nil),
		f.remote.EXPECT().ListSessions(gomock.Any(), userID).Return([]entity.Session{*promoted}, nil),
	)

	signals := make(chan struct{})
	done := make(chan struct{})
	go func() {
		f.sync.WatchConnectivity(ctx, signals)
		close(done)
	}()
	signals <- struct{}{}
	assert.Eventually(t, func() bool {
		sessions := f.sync.Sessions()
		return f.sync.PendingCount() == 0 && len(sessions) == 1 && sessions[0].ID == promoted.ID
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestStatsUsesCurrentList(t *testing.T) {
	f := setup(t, true)
	f.addOnline(t, "math", 30, now.Add(-time.Hour))
	f.addOffline(t, "english", 60, now.Add(-25*time.Hour))

	report := f.sync.Stats(7, time.UTC)
	assert.Equal(t, 90, report.Overall.TotalMinutes)
	assert.Equal(t, 2, report.Overall.TotalSessions)
	assert.Equal(t, 2, report.Overall.ConsecutiveDays)
	assert.Equal(t, "english", report.Overall.FavoriteSubject)
	assert.Len(t, report.Daily, 7)
}
