//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/repository"
	"github.com/limbo/studytrack/pkg/entity"
	"github.com/pressly/goose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type testPGConfig struct {
	connStr string
}

func (c *testPGConfig) ConnString() string {
	return c.connStr
}

func setupTestDB(t *testing.T) *testPGConfig {
	container, err := postgres.Run(context.Background(), "postgres:17",
		postgres.WithUsername("test_user"),
		postgres.WithDatabase("studytrack"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatal("error running test container: " + err.Error())
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})
	connStr, err := container.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err = goose.Up(conn, "../../migrations"); err != nil {
		t.Fatal(err)
	}
	return &testPGConfig{
		connStr: connStr,
	}
}

func TestSessionsIntegrational(t *testing.T) {
	cfg := setupTestDB(t)
	users := repository.NewUsersRepo(cfg)
	sessions := repository.NewSessionsRepo(cfg)
	ctx := context.Background()

	uid, err := users.Create(ctx, &entity.User{Name: "student", PasswordHash: "hash"})
	require.NoError(t, err)

	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	var first *entity.Session
	t.Run("create", func(t *testing.T) {
		first, err = sessions.Create(ctx, entity.SessionPayload{
			UserID: uid, Subject: "math", Minutes: 30, StartedAt: base.Add(-48 * time.Hour),
		})
		require.NoError(t, err)
		assert.False(t, first.CreatedAt.IsZero())
	})
	t.Run("minutes out of range", func(t *testing.T) {
		_, err := sessions.Create(ctx, entity.SessionPayload{
			UserID: uid, Subject: "math", Minutes: 0, StartedAt: base,
		})
		assert.ErrorIs(t, err, errorvalues.ErrInvalidSession)
	})
	t.Run("unknown owner", func(t *testing.T) {
		_, err := sessions.Create(ctx, entity.SessionPayload{
			UserID: uuid.New(), Subject: "math", Minutes: 10, StartedAt: base,
		})
		assert.ErrorIs(t, err, errorvalues.ErrOwnerNotFound)
	})
	t.Run("batch is all or nothing", func(t *testing.T) {
		_, err := sessions.CreateBatch(ctx, []entity.SessionPayload{
			{UserID: uid, Subject: "english", Minutes: 20, StartedAt: base},
			{UserID: uid, Subject: "english", Minutes: 5000, StartedAt: base},
		})
		assert.Error(t, err)
		list, err := sessions.ListByUserID(ctx, uid)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
	t.Run("batch", func(t *testing.T) {
		created, err := sessions.CreateBatch(ctx, []entity.SessionPayload{
			{UserID: uid, Subject: "english", Minutes: 20, StartedAt: base},
			{UserID: uid, Subject: "physics", Minutes: 40, StartedAt: base.Add(-time.Hour)},
		})
		require.NoError(t, err)
		assert.Len(t, created, 2)
	})
	t.Run("list is most recent first", func(t *testing.T) {
		list, err := sessions.ListByUserID(ctx, uid)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "english", list[0].Subject)
		assert.Equal(t, "physics", list[1].Subject)
		assert.Equal(t, "math", list[2].Subject)
	})
	t.Run("update", func(t *testing.T) {
		id := uuid.MustParse(first.ID.Value())
		updated, err := sessions.Update(ctx, id, entity.SessionPayload{
			Subject: "algebra", Minutes: 35, StartedAt: first.StartedAt, Note: "ch. 2",
		})
		require.NoError(t, err)
		assert.Equal(t, uid, updated.UserID)
		got, err := sessions.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "algebra", got.Subject)
		assert.Equal(t, "ch. 2", got.Note)
	})
	t.Run("delete", func(t *testing.T) {
		id := uuid.MustParse(first.ID.Value())
		require.NoError(t, sessions.Delete(ctx, id))
		assert.ErrorIs(t, sessions.Delete(ctx, id), errorvalues.ErrSessionNotFound)
	})
}
