// Package localstore keeps the last known session list and the sessions created while offline
// on the device, so unsynced work survives a restart.
//
// Storage is advisory: every failure is reported to a Sink and the caller gets an empty result.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/limbo/studytrack/pkg/entity"
)

const (
	SnapshotKey    = "studytrack_sessions"
	PendingSyncKey = "studytrack_pending_sync"

	formatVersion = 1
)

var errUnavailable = errors.New("storage medium unavailable")

// Diagnostic describes a swallowed local persistence failure.
type Diagnostic struct {
	Op  string
	Key string
	Err error
}

// Sink receives diagnostics. It must not block.
type Sink func(Diagnostic)

// LogSink reports diagnostics as slog warnings.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return func(d Diagnostic) {
		logger.Warn("local storage failure",
			slog.String("op", d.Op),
			slog.String("key", d.Key),
			slog.String("error", d.Err.Error()),
		)
	}
}

type envelope struct {
	Version  int              `json:"version"`
	Sessions []entity.Session `json:"sessions"`
}

type Queue struct {
	kv   KV
	sink Sink
}

// NewQueue builds a queue over kv. A nil kv behaves like a disabled medium.
func NewQueue(kv KV, sink Sink) *Queue {
	if sink == nil {
		sink = LogSink(nil)
	}
	return &Queue{
		kv:   kv,
		sink: sink,
	}
}

func (q *Queue) SaveSnapshot(ctx context.Context, sessions []entity.Session) {
	q.save(ctx, "save snapshot", SnapshotKey, sessions)
}

func (q *Queue) LoadSnapshot(ctx context.Context) []entity.Session {
	return q.load(ctx, "load snapshot", SnapshotKey)
}

func (q *Queue) SavePending(ctx context.Context, sessions []entity.Session) {
	q.save(ctx, "save pending", PendingSyncKey, sessions)
}

func (q *Queue) LoadPending(ctx context.Context) []entity.Session {
	return q.load(ctx, "load pending", PendingSyncKey)
}

func (q *Queue) ClearPending(ctx context.Context) {
	q.remove(ctx, "clear pending", PendingSyncKey)
}

// ClearAll forgets both the snapshot and the pending queue.
func (q *Queue) ClearAll(ctx context.Context) {
	q.remove(ctx, "clear snapshot", SnapshotKey)
	q.remove(ctx, "clear pending", PendingSyncKey)
}

func (q *Queue) save(ctx context.Context, op, key string, sessions []entity.Session) {
	if q.kv == nil {
		q.report(op, key, errUnavailable)
		return
	}
	if sessions == nil {
		sessions = []entity.Session{}
	}
	data, err := sonic.Marshal(envelope{Version: formatVersion, Sessions: sessions})
	if err != nil {
		q.report(op, key, errors.New("encoding error: "+err.Error()))
		return
	}
	if err := q.kv.Put(ctx, key, data); err != nil {
		q.report(op, key, err)
	}
}

func (q *Queue) load(ctx context.Context, op, key string) []entity.Session {
	if q.kv == nil {
		q.report(op, key, errUnavailable)
		return []entity.Session{}
	}
	data, err := q.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			q.report(op, key, err)
		}
		return []entity.Session{}
	}
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		q.report(op, key, errors.New("malformed data: "+err.Error()))
		return []entity.Session{}
	}
	if env.Version != formatVersion {
		q.report(op, key, fmt.Errorf("unsupported format version %d", env.Version))
		return []entity.Session{}
	}
	if env.Sessions == nil {
		return []entity.Session{}
	}
	return env.Sessions
}

func (q *Queue) remove(ctx context.Context, op, key string) {
	if q.kv == nil {
		q.report(op, key, errUnavailable)
		return
	}
	if err := q.kv.Delete(ctx, key); err != nil {
		q.report(op, key, err)
	}
}

func (q *Queue) report(op, key string, err error) {
	q.sink(Diagnostic{Op: op, Key: key, Err: err})
}
