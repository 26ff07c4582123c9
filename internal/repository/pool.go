package repository

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/limbo/studytrack/pkg/cleanup"
)

// NewPool opens a pgx pool shared by all repositories and registers its closing on cleanup.
func NewPool(cfg DBConfig) *pgxpool.Pool {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating pgx pool error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging pgx pool: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return pool
}

// mustPing stops the process when a connection handed to a repository is unusable.
func mustPing(conn PgConnection, owner string) {
	if err := conn.Ping(context.Background()); err != nil {
		log.Fatalf("pinging connection for %s error: %s", owner, err.Error())
	}
}
