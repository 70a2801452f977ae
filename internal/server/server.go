package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/handler"
	"taskflow/internal/logging"
	"taskflow/internal/mailer"
	"taskflow/internal/metrics"
	"taskflow/internal/middleware"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
	Hub    *realtime.Hub

	relay  *realtime.RedisRelay
	cancel context.CancelFunc
}

func Init(cfg *config.Config) (*Server, error) {
	log := logging.Logger

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.MigrationURL(), log); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, err
	}
	log.Info("Connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{DB: db, Config: cfg, Hub: realtime.NewHub(), cancel: cancel}

	if cfg.RedisURL != "" {
		relay, err := realtime.NewRedisRelay(cfg.RedisURL, s.Hub, log)
		if err != nil {
			cancel()
			return nil, err
		}
		if err := relay.Start(ctx); err != nil {
			relay.Close()
			cancel()
			return nil, err
		}
		s.Hub.SetRelay(relay, func(err error) {
			log.WithError(err).Warn("Failed to relay event")
		})
		s.relay = relay
		log.Info("Realtime relay connected to Redis")
	}

	var mail service.Mailer = mailer.LogMailer{Log: log}
	if cfg.SMTPHost != "" {
		smtpMailer, err := mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		mail = smtpMailer
	}

	// Initialize repositories
	companyRepo := repository.NewCompanyRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Initialize services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.ResetExpiry)
	resolver := auth.NewResolver(tokens, memberRepo)
	accounts := service.NewAccountService(memberRepo, companyRepo, tokens, tokens, s.Hub, log)
	projects := service.NewProjectService(projectRepo, companyRepo, s.Hub, log)
	tasks := service.NewTaskService(taskRepo, projectRepo, memberRepo, s.Hub, log)
	team := service.NewTeamService(memberRepo, companyRepo, s.Hub, mail, tokens, cfg.AppBaseURL+"/reset-password", log)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(accounts)
	projectHandler := handler.NewProjectHandler(projects)
	taskHandler := handler.NewTaskHandler(tasks)
	teamHandler := handler.NewTeamHandler(team)
	eventHandler := handler.NewEventHandler(s.Hub, 25*time.Second, ctx.Done())

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(), metrics.Middleware())

	// Public routes
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.POST("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
	r.GET("/health", s.health)
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(resolver))
	{
		authorized.GET("/me", authHandler.Me)
		authorized.PUT("/me", authHandler.UpdateMe)

		// Project routes
		authorized.POST("/projects", projectHandler.Create)
		authorized.GET("/projects", projectHandler.List)
		authorized.GET("/projects/:id", projectHandler.GetByID)
		authorized.PUT("/projects/:id", projectHandler.Update)
		authorized.DELETE("/projects/:id", projectHandler.Delete)

		// Task routes
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks", taskHandler.List)
		authorized.GET("/tasks/stats", taskHandler.Stats)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
		authorized.POST("/tasks/:id/move", taskHandler.Move)

		// Team routes
		authorized.GET("/members", teamHandler.List)
		authorized.POST("/members", teamHandler.Create)
		authorized.PUT("/members/:id/role", teamHandler.SetRole)
		authorized.POST("/members/:id/password", teamHandler.SetPassword)
		authorized.POST("/members/:id/password-reset", teamHandler.SendPasswordReset)
		authorized.DELETE("/members/:id", teamHandler.Delete)

		authorized.GET("/events", eventHandler.Stream)
	}

	s.Engine = r
	return s, nil
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Close releases the relay and the database pool.
func (s *Server) Close() {
	s.cancel()
	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			logging.Logger.WithError(err).Warn("Failed to close Redis relay")
		}
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *Server) Run() {
	log := logging.Logger
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}
	srv.RegisterOnShutdown(s.cancel)

	go func() {
		log.WithField("port", s.Config.ServerPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to listen")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	s.Close()

	log.Info("Server exited properly")
}
