package main

import (
	"log"
	"time"

	"github.com/limbo/studytrack/internal/api"
	"github.com/limbo/studytrack/internal/repository"
	"github.com/limbo/studytrack/internal/service"
	"github.com/limbo/studytrack/pkg/config"
	jwtservice "github.com/limbo/studytrack/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	cfg := config.New()
	dbCfg := repository.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}
	pool := repository.NewPool(&dbCfg)
	userService := service.NewUserService(repository.NewUsersRepoWithConn(pool))
	sessionsService := service.NewSessionsService(repository.NewSessionsRepoWithConn(pool))
	serv := api.New(&api.ServicesList{
		UserService:     userService,
		SessionsService: sessionsService,
		Tokens:          jwtservice.New(cfg.GetString("JWT_SECRET"), cfg.GetDuration("JWT_TTL", time.Hour)),
	})
	err := serv.Run(cfg.GetStringOr("API_ADDRESS", ":8080"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
}
