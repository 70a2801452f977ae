package main

import (
	_ "taskflow/docs"
	"taskflow/internal/config"
	"taskflow/internal/logging"
	"taskflow/internal/server"
)

// @title           TaskFlow API
// @version         1.0
// @description     Multi-tenant projects and tasks with role-scoped permissions.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	s, err := server.Init(cfg)
	if err != nil {
		logging.Logger.WithError(err).Fatal("Server initialization failed")
	}

	s.Run()
}
