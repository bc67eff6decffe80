package main

import (
	"context"
	"net/http"
	"time"

	"github.com/DagneMan123/simuAI-sub001/config"
	"github.com/DagneMan123/simuAI-sub001/database"
	adminctrl "github.com/DagneMan123/simuAI-sub001/internal/controller/admin"
	candidatectrl "github.com/DagneMan123/simuAI-sub001/internal/controller/candidate"
	"github.com/DagneMan123/simuAI-sub001/internal/logger"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/DagneMan123/simuAI-sub001/internal/repository"
	"github.com/DagneMan123/simuAI-sub001/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Assessment Session Engine API
// @version 1.0
// @description Timed, remotely-proctored skill simulations with AI evaluation: session lifecycle, integrity monitoring, and asynchronous scoring.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase, // Provides *gorm.DB
			NewGinEngine,         // Provides *gin.Engine
		),

		// Repositories Layer
		fx.Provide(
			repository.NewSimulationRepository,
			repository.NewInvitationRepository,
			repository.NewSessionRepository,
			repository.NewSubmissionRepository,
			repository.NewViolationRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewClockService,
			service.NewLedgerService,
			service.NewMonitorService,
			service.NewGeminiGenerator,
			service.NewEvaluatorService,
			service.NewEvaluationQueue,
			service.NewResultService,
			service.NewSessionService,
			service.NewSimulationService,
		),

		// API Controllers Layer
		fx.Provide(
			adminctrl.NewSimulationController,
			candidatectrl.NewSessionController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(StartEvaluationWorkers),
		fx.Invoke(StartExpirySweep),
		fx.Invoke(RecoverSessions),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-User-Role"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	simulationCtrl *adminctrl.SimulationController,
	sessionCtrl *candidatectrl.SessionController,
) {
	// Admin Routes (prefixed with /api/v1/admin)
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		adminAPIGroup.POST("/simulations", simulationCtrl.CreateSimulation)
		adminAPIGroup.POST("/simulations/generate", simulationCtrl.GenerateSimulation)
		adminAPIGroup.POST("/simulations/:simulation_id/publish", simulationCtrl.PublishSimulation)
		adminAPIGroup.POST("/simulations/:simulation_id/invitations", simulationCtrl.CreateInvitation)
		adminAPIGroup.GET("/simulations/:simulation_id/sessions", simulationCtrl.ListSessions)
		adminAPIGroup.GET("/sessions/:session_id/violations", simulationCtrl.ListViolations)
		adminAPIGroup.POST("/violations/:violation_id/resolve", simulationCtrl.ResolveViolation)
	}

	// Candidate Routes (prefixed with /api/v1)
	candidateAPIGroup := router.Group("/api/v1")
	{
		candidateAPIGroup.GET("/simulations", sessionCtrl.ListSimulations)
		candidateAPIGroup.GET("/simulations/:simulation_id", sessionCtrl.GetSimulation)
		candidateAPIGroup.POST("/simulations/:simulation_id/sessions", sessionCtrl.StartSession)
		candidateAPIGroup.POST("/sessions/:session_id/steps/:step_id", sessionCtrl.SubmitStep)
		candidateAPIGroup.POST("/sessions/:session_id/complete", sessionCtrl.CompleteSession)
		candidateAPIGroup.GET("/sessions/:session_id/result", sessionCtrl.GetResult)
		candidateAPIGroup.GET("/my/sessions", sessionCtrl.ListMySessions)
		candidateAPIGroup.POST("/sessions/:session_id/signals", sessionCtrl.IngestSignal)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Assessment session engine starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// StartEvaluationWorkers ties the scoring worker pool to the fx lifecycle.
func StartEvaluationWorkers(lc fx.Lifecycle, queue service.EvaluationQueue) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			queue.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			queue.Stop()
			return nil
		},
	})
}

// StartExpirySweep runs the periodic sweep that times out overrun sessions and
// expires stale invitations.
func StartExpirySweep(lc fx.Lifecycle, cfg *config.Config, sessions service.SessionService) {
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(cfg.Sweep.Interval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := sessions.SweepExpired(); err != nil {
							log.Error().Err(err).Msg("Expiry sweep failed")
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
}

// RecoverSessions re-arms countdowns and monitors for sessions that were in
// progress when the process last stopped.
func RecoverSessions(lc fx.Lifecycle, sessions service.SessionService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sessions.Recover(); err != nil {
				log.Error().Err(err).Msg("Session recovery failed")
			}
			return nil
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Simulation{},
		&model.Step{},
		&model.Invitation{},
		&model.Session{},
		&model.Submission{},
		&model.ViolationEvent{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
