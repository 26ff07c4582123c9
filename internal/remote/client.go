// Package remote is the HTTP client of the studytrack API. It implements the remote session
// store consumed by the synchronizer and holds the signed-in identity.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/pkg/dto"
	"github.com/limbo/studytrack/pkg/entity"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
	uid   uuid.UUID
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithCredentials restores an identity obtained by an earlier Login.
func WithCredentials(uid uuid.UUID, token string) Option {
	return func(c *Client) {
		c.uid = uid
		c.token = token
	}
}

// New builds a client for the API rooted at baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser returns the signed-in user, if any.
func (c *Client) CurrentUser() (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid, c.uid != uuid.Nil && c.token != ""
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid = uuid.Nil
	c.token = ""
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, override statusMapping) error {
	var reader io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		if err != nil {
			return errors.New("encoding request body error: " + err.Error())
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.New("building request error: " + err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errorvalues.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp, override)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New("decoding response body error: " + err.Error())
	}
	return nil
}

func (c *Client) authenticated() (uuid.UUID, error) {
	uid, ok := c.CurrentUser()
	if !ok {
		return uuid.Nil, errorvalues.ErrUnauthenticated
	}
	return uid, nil
}

// Health succeeds when the store answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) Register(ctx context.Context, name, password string) (uuid.UUID, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", dto.AuthRequest{Name: name, Password: password}, &resp, statusMapping{
		http.StatusBadRequest: errorvalues.ErrInvalidUserData,
	})
	if err != nil {
		return uuid.Nil, err
	}
	uid, err := uuid.Parse(resp.UserID)
	if err != nil {
		return uuid.Nil, errors.New("invalid uid in response: " + err.Error())
	}
	return uid, nil
}

// Login exchanges credentials for a token and keeps both as the current identity.
func (c *Client) Login(ctx context.Context, name, password string) (uuid.UUID, string, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", dto.AuthRequest{Name: name, Password: password}, &resp, statusMapping{
		http.StatusNotFound:  errorvalues.ErrUserNotFound,
		http.StatusForbidden: errorvalues.ErrWrongCredentials,
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	uid, err := uuid.Parse(resp.UserID)
	if err != nil || resp.Token == "" {
		return uuid.Nil, "", errors.New("invalid login response")
	}
	c.mu.Lock()
	c.uid = uid
	c.token = resp.Token
	c.mu.Unlock()
	return uid, resp.Token, nil
}

func (c *Client) CreateSession(ctx context.Context, payload entity.SessionPayload) (*entity.Session, error) {
	if _, err := c.authenticated(); err != nil {
		return nil, err
	}
	var resp dto.Session
	if err := c.do(ctx, http.MethodPost, "/sessions", dto.FromPayload(payload), &resp, nil); err != nil {
		return nil, err
	}
	session, err := resp.ToEntity()
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateSessions stores the whole batch in one request. The server keeps all or none.
func (c *Client) CreateSessions(ctx context.Context, payloads []entity.SessionPayload) ([]entity.Session, error) {
	if _, err := c.authenticated(); err != nil {
		return nil, err
	}
	req := dto.BatchRequest{Sessions: make([]dto.SessionRequest, 0, len(payloads))}
	for _, p := range payloads {
		req.Sessions = append(req.Sessions, dto.FromPayload(p))
	}
	var resp dto.SessionsResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/batch", req, &resp, nil); err != nil {
		return nil, err
	}
	return dto.ToEntities(resp.Sessions)
}

// ListSessions returns the user's sessions, most recent StartedAt first.
func (c *Client) ListSessions(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	uid, err := c.authenticated()
	if err != nil {
		return nil, err
	}
	if userID != uid {
		return nil, fmt.Errorf("%w: listing sessions of another user", errorvalues.ErrUnauthenticated)
	}
	var resp dto.SessionsResponse
	if err = c.do(ctx, http.MethodGet, "/sessions", nil, &resp, nil); err != nil {
		return nil, err
	}
	return dto.ToEntities(resp.Sessions)
}

func (c *Client) UpdateSession(ctx context.Context, id string, payload entity.SessionPayload) (*entity.Session, error) {
	if _, err := c.authenticated(); err != nil {
		return nil, err
	}
	var resp dto.Session
	if err := c.do(ctx, http.MethodPatch, "/sessions/"+url.PathEscape(id), dto.FromPayload(payload), &resp, nil); err != nil {
		return nil, err
	}
	session, err := resp.ToEntity()
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if _, err := c.authenticated(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil, nil)
}

// Stats asks the server to aggregate every stored session of the user.
func (c *Client) Stats(ctx context.Context, days int, loc *time.Location) (*entity.StatsReport, error) {
	if _, err := c.authenticated(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))
	if loc != nil && loc.String() != "Local" {
		q.Set("tz", loc.String())
	}
	var report entity.StatsReport
	if err := c.do(ctx, http.MethodGet, "/stats?"+q.Encode(), nil, &report, nil); err != nil {
		return nil, err
	}
	return &report, nil
}
