// Package cli is the studytrack command line client. Commands are thin: they parse input, call
// the synchronizer and render what it holds.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/localstore"
	"github.com/limbo/studytrack/internal/remote"
	"github.com/limbo/studytrack/internal/synchronizer"
	"github.com/limbo/studytrack/pkg/cleanup"
	"github.com/limbo/studytrack/pkg/config"
)

const authKey = "studytrack_auth"

type Settings struct {
	Server        string
	DBPath        string
	Timeout       time.Duration
	ProbeInterval time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Server:        cfg.GetStringOr("STUDYTRACK_SERVER", "http://localhost:8080/api/v1"),
		DBPath:        cfg.GetStringOr("STUDYTRACK_DB", "~/.studytrack/studytrack.db"),
		Timeout:       cfg.GetDuration("STUDYTRACK_TIMEOUT", 10*time.Second),
		ProbeInterval: cfg.GetDuration("STUDYTRACK_PROBE_INTERVAL", 10*time.Second),
	}
}

// Opener builds the App a command runs against.
type Opener func(s Settings, out io.Writer) (*App, error)

type App struct {
	kv       localstore.KV
	queue    *localstore.Queue
	client   *remote.Client
	sync     *synchronizer.Synchronizer
	settings Settings
	logger   *slog.Logger
	out      io.Writer
}

type credentials struct {
	UID   uuid.UUID `json:"uid"`
	Token string    `json:"token"`
}

// Open uses the SQLite file from s.DBPath. Closing it is registered as a cleanup job.
func Open(s Settings, out io.Writer) (*App, error) {
	kv, err := localstore.OpenSQLiteKV(expandHome(s.DBPath))
	if err != nil {
		return nil, errors.New("opening local store error: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing local store",
		F:    kv.Close,
	})
	return NewApp(kv, s, &http.Client{Timeout: s.Timeout}, out), nil
}

// NewApp wires the client, the local queue and the synchronizer over kv. A signed-in
// identity saved by an earlier login is restored.
func NewApp(kv localstore.KV, s Settings, hc *http.Client, out io.Writer) *App {
	logger := slog.Default()
	ctx := context.Background()
	opts := []remote.Option{remote.WithHTTPClient(hc)}
	if cred, ok := loadCredentials(ctx, kv, logger); ok {
		opts = append(opts, remote.WithCredentials(cred.UID, cred.Token))
	}
	client := remote.New(s.Server, opts...)
	queue := localstore.NewQueue(kv, localstore.LogSink(logger))
	engine := synchronizer.New(client, client, queue,
		synchronizer.WithNotifier(NewNotifier(out)),
		synchronizer.WithLogger(logger),
	)
	return &App{
		kv:       kv,
		queue:    queue,
		client:   client,
		sync:     engine,
		settings: s,
		logger:   logger,
		out:      out,
	}
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

func loadCredentials(ctx context.Context, kv localstore.KV, logger *slog.Logger) (credentials, bool) {
	raw, err := kv.Get(ctx, authKey)
	if err != nil {
		if !errors.Is(err, localstore.ErrKeyNotFound) {
			logger.Warn("reading saved login error", slog.String("error", err.Error()))
		}
		return credentials{}, false
	}
	var cred credentials
	if err = sonic.Unmarshal(raw, &cred); err != nil || cred.UID == uuid.Nil || cred.Token == "" {
		logger.Warn("saved login is malformed, ignoring it")
		return credentials{}, false
	}
	return cred, true
}

func (a *App) saveCredentials(ctx context.Context, cred credentials) error {
	raw, err := sonic.Marshal(cred)
	if err != nil {
		return errors.New("encoding login error: " + err.Error())
	}
	if err = a.kv.Put(ctx, authKey, raw); err != nil {
		return errors.New("saving login error: " + err.Error())
	}
	return nil
}

// Login signs in, keeps the token for later runs and fetches the user's sessions.
func (a *App) Login(ctx context.Context, name, password string) (uuid.UUID, error) {
	uid, token, err := a.client.Login(ctx, name, password)
	if err != nil {
		return uuid.Nil, err
	}
	if err = a.saveCredentials(ctx, credentials{UID: uid, Token: token}); err != nil {
		return uuid.Nil, err
	}
	a.sync.Fetch(ctx)
	return uid, nil
}

// Logout forgets the token. Unsynced sessions stay queued for when the same user signs in
// again unless purge is set.
func (a *App) Logout(ctx context.Context, purge bool) error {
	a.client.SignOut()
	if err := a.kv.Delete(ctx, authKey); err != nil {
		return errors.New("removing saved login error: " + err.Error())
	}
	if purge {
		a.queue.ClearAll(ctx)
	}
	return nil
}

func (a *App) requireIdentity() (uuid.UUID, error) {
	uid, ok := a.client.CurrentUser()
	if !ok {
		return uuid.Nil, errorvalues.ErrUnauthenticated
	}
	return uid, nil
}
