package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"asistencia/internal/auth"
	"asistencia/internal/config"
	"asistencia/internal/credential"
	"asistencia/internal/httpmiddleware"
	"asistencia/internal/roster"
	"asistencia/internal/scan"
	"asistencia/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return err
		}
		// Open succeeded but the ping did not; the pool reconnects on use.
		log.Printf("warning: db not reachable: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	repo := roster.NewRepository(db.Client)

	extractor := credential.NewExtractor(
		credential.Options{
			Endpoint:       cfg.CredentialEndpoint,
			AllowedDomains: cfg.AllowedDomains,
			InstitutionTag: cfg.InstitutionTag,
		},
		credential.NewFetcher(cfg.FetchTimeout),
		credential.UDPProbe{},
		credential.NewRedisProfileCache(redisClient.Client, cfg.ProfileCacheTTL),
	)

	engines := scan.NewManager(func(instructorID string) *scan.Engine {
		return scan.NewEngine(repo, extractor, instructorID, scan.Options{
			LateThresholdMin:   cfg.LateThresholdMin,
			DefaultDurationMin: cfg.DefaultDurationMin,
			CooldownOK:         cfg.CooldownOK,
			CooldownHard:       cfg.CooldownHard,
		})
	})

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/instructors/register", func(c *gin.Context) {
		var req struct {
			InstructorID string `json:"instructor_id" binding:"required"`
			Name         string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := auth.Issue(req.InstructorID, req.Name, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.InstructorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	engineFor := func(c *gin.Context) *scan.Engine {
		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		return engines.For(claims.Subject)
	}

	authGroup.POST("/subjects/:id/select", func(c *gin.Context) {
		eng := engineFor(c)
		if err := eng.SelectSubject(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": eng.Snapshot()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": eng.Snapshot()})
	})

	authGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		eng := engineFor(c)
		feedback, err := eng.Scan(c.Request.Context(), req.Payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if feedback == nil {
			// Decode arrived outside the scanning phase and was dropped.
			c.JSON(http.StatusOK, gin.H{"dropped": true, "state": eng.Snapshot()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"feedback": feedback, "state": eng.Snapshot()})
	})

	authGroup.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"state": engineFor(c).Snapshot()})
	})

	authGroup.GET("/ledger", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entries": engineFor(c).Recent()})
	})

	authGroup.POST("/retry", func(c *gin.Context) {
		eng := engineFor(c)
		if err := eng.Retry(c.Request.Context()); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": eng.Snapshot()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": eng.Snapshot()})
	})

	authGroup.POST("/close", func(c *gin.Context) {
		eng := engineFor(c)
		eng.Close()
		c.JSON(http.StatusOK, gin.H{"state": eng.Snapshot()})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
