package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devboard/devboard/config"
	"github.com/devboard/devboard/handler"
	"github.com/devboard/devboard/middleware"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/repository"
	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	if err := godotenv.Load(); err != nil && os.Getenv("GO_ENV") != "test" {
		log.Printf("No .env file loaded: %v", err)
	}

	requiredEnvVars := []string{
		"MONGO_URI",
		"MONGO_DB",
		"JWT_SECRET_KEY",
		"JWT_EXPIRATION_TIME",
		"REFRESH_TOKEN_EXPIRATION_TIME",
	}
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" && os.Getenv("GO_ENV") != "test" {
			log.Fatalf("Required environment variable %s is not set", envVar)
		}
	}

	utils.InitValidator()
	services.InitJWT()
}

func setupRouter(cfg config.Config, sessionService *usecase.SessionService, activityService *usecase.ActivityService, userService *usecase.UserService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.SessionMiddleware(sessionService, cfg.Session.InactivityTimeout))

	router.GET("/health", handler.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/api")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/register", func(c *gin.Context) {
				handler.RegistrationHandler(c, userService)
			})
			auth.POST("/login", func(c *gin.Context) {
				handler.LoginHandler(c, userService, sessionService, activityService, cfg.Session.MaxActivePerUser)
			})
			auth.POST("/refresh", func(c *gin.Context) {
				handler.RefreshTokenHandler(c, sessionService, activityService)
			})
		}
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		user := protected.Group("/user")
		{
			user.POST("/logout", func(c *gin.Context) {
				handler.LogoutHandler(c, sessionService, activityService)
			})
			user.POST("/change-password", func(c *gin.Context) {
				handler.ChangePasswordHandler(c, userService, sessionService, activityService)
			})
			user.POST("/2fa/setup", func(c *gin.Context) {
				handler.Setup2FAHandler(c, userService)
			})
			user.POST("/2fa/enable", func(c *gin.Context) {
				handler.Enable2FAHandler(c, userService, activityService)
			})
		}

		sessions := protected.Group("/sessions")
		{
			sessions.GET("/active", func(c *gin.Context) {
				handler.GetActiveSessions(c, sessionService)
			})
			sessions.POST("/logout-all", func(c *gin.Context) {
				handler.LogoutAllSessions(c, sessionService, activityService)
			})
		}

		activity := protected.Group("/activity")
		{
			activity.GET("/", func(c *gin.Context) {
				handler.GetUserActivitiesHandler(c, activityService)
			})
			activity.GET("/stats", func(c *gin.Context) {
				handler.GetActivityStatsHandler(c, activityService)
			})
			activity.POST("/", func(c *gin.Context) {
				handler.LogActivityHandler(c, activityService)
			})
		}
	}

	return router
}

// startCleanupSweep runs the active session sweep on a fixed interval.
// The sweep removes expired sessions the TTL reaper has not yet caught,
// plus deactivated-but-undeleted ones.
func startCleanupSweep(ctx context.Context, sessionService *usecase.SessionService, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				removed, err := sessionService.CleanupExpiredSessions(sweepCtx)
				cancel()
				if err != nil {
					log.Printf("Session cleanup sweep failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("Session cleanup sweep removed %d sessions", removed)
				}
			}
		}
	}()
}

func main() {
	cfg := config.Load()

	client := utils.InitMongoClient(
		cfg.Database.URI,
		cfg.Database.MaxPoolSize,
		cfg.Database.MinPoolSize,
		cfg.Database.MaxConnIdleTime,
	)
	defer client.Disconnect(context.Background())

	if err := repository.SetupIndexes(client.Database(cfg.Database.DatabaseName)); err != nil {
		log.Fatalf("Failed to set up indexes: %v", err)
	}

	if cfg.Redis.Enabled {
		cache, err := services.NewSessionCache(cfg.Redis.URL)
		if err != nil {
			log.Printf("Warning: session cache disabled: %v", err)
		} else {
			services.GlobalSessionCache = cache
			defer cache.Close()
		}

		blacklist, err := services.NewTokenBlacklist(cfg.Redis.URL)
		if err != nil {
			log.Printf("Warning: token blacklist disabled: %v", err)
		} else {
			services.TokenBlacklist = blacklist
			defer blacklist.Close()
		}
	}

	sessionRepo := repository.GetSessionRepo(client, cfg.Database.DatabaseName)
	activityRepo := repository.GetActivityRepo(client, cfg.Database.DatabaseName)
	userRepo := repository.GetUserRepo(client, cfg.Database.DatabaseName)

	sessionService := &usecase.SessionService{
		Store: sessionRepo,
		Tokens: func(userID string) (model.TokenPair, error) {
			return services.GenerateTokenPair(userID)
		},
		Duration: cfg.Session.Duration,
	}
	activityService := &usecase.ActivityService{Store: activityRepo}
	userService := &usecase.UserService{UsersRepo: userRepo}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCleanupSweep(ctx, sessionService, cfg.Session.CleanupInterval)

	router := setupRouter(cfg, sessionService, activityService, userService)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server shutdown complete")
}
