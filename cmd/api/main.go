package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	qrcode "github.com/skip2/go-qrcode"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/config"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/queue"
	"qrattend/internal/state"
	"qrattend/internal/store"
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
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		// Without the store every dependent operation would fail; bail out.
		return err
	}
	defer st.Close()

	ctx := context.Background()

	adminHash, err := auth.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := st.SeedAdmin(ctx, "admin-1", "Administrator", cfg.AdminEmail, adminHash); err != nil {
		return err
	}
	if err := st.Persist(ctx); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:events")
	} else {
		q = queue.NewInMemory(64)
	}

	repo := attendance.NewRepository(st.DB())
	svc := attendance.NewService(repo, st, q, attendance.TokenConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.TokenTTL,
	}, cfg.BcryptCost)

	app := state.NewController(repo)
	if err := app.ReloadAll(ctx); err != nil {
		return err
	}

	slot := auth.NewSlot()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := cfg.QueueBackend != "redis" || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy})
	})

	r.POST("/v1/auth/signup", func(c *gin.Context) {
		var req struct {
			Name       string  `json:"name" binding:"required"`
			Email      string  `json:"email" binding:"required"`
			Password   string  `json:"password" binding:"required"`
			StudentID  *string `json:"studentId"`
			Department *string `json:"department"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := svc.SignUp(c.Request.Context(), attendance.SignUpInput{
			Name:       req.Name,
			Email:      req.Email,
			Password:   req.Password,
			StudentID:  req.StudentID,
			Department: req.Department,
		})
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		_ = app.ReloadUsers(c.Request.Context())
		c.JSON(http.StatusCreated, gin.H{"user": user})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, token, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		slot.Set(token)
		app.SetCurrentUser(&user)
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	})

	authGroup := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/auth/logout", func(c *gin.Context) {
		slot.Clear()
		app.SetCurrentUser(nil)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	authGroup.GET("/auth/me", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		user, err := repo.FindUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	authGroup.GET("/sessions", func(c *gin.Context) {
		now := time.Now()
		sessions := app.Sessions()
		out := make([]gin.H, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, gin.H{"session": s, "status": s.StatusAt(now)})
		}
		c.JSON(http.StatusOK, gin.H{"sessions": out})
	})

	authGroup.GET("/sessions/:id/attendance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"records": app.SessionAttendance(c.Param("id"))})
	})

	authGroup.GET("/sessions/:id/qr.png", func(c *gin.Context) {
		session, err := repo.FindSessionByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		png, err := qrcode.Encode(session.QRCode, qrcode.Medium, 256)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"records": app.Records()})
	})

	authGroup.POST("/attendance/scan", func(c *gin.Context) {
		var req struct {
			Payload  string  `json:"payload" binding:"required"`
			Location *string `json:"location"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)
		var deviceInfo *string
		if ua := c.Request.UserAgent(); ua != "" {
			deviceInfo = &ua
		}
		record, err := svc.MarkByScan(c.Request.Context(), req.Payload, claims.UserID, req.Location, deviceInfo)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		_ = app.ReloadRecords(c.Request.Context())
		c.JSON(http.StatusCreated, gin.H{"record": record})
	})

	adminGroup := authGroup.Group("", auth.RequireAdmin())

	adminGroup.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": app.Users()})
	})

	adminGroup.POST("/users", func(c *gin.Context) {
		var req struct {
			Name       string  `json:"name" binding:"required"`
			Email      string  `json:"email" binding:"required"`
			Password   string  `json:"password" binding:"required"`
			Role       string  `json:"role" binding:"required"`
			StudentID  *string `json:"studentId"`
			Department *string `json:"department"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := svc.CreateUser(c.Request.Context(), attendance.CreateUserInput{
			Name:       req.Name,
			Email:      req.Email,
			Password:   req.Password,
			Role:       req.Role,
			StudentID:  req.StudentID,
			Department: req.Department,
		})
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		_ = app.ReloadUsers(c.Request.Context())
		c.JSON(http.StatusCreated, gin.H{"user": user})
	})

	adminGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Title       string    `json:"title" binding:"required"`
			Description string    `json:"description"`
			StartTime   time.Time `json:"startTime" binding:"required"`
			EndTime     time.Time `json:"endTime" binding:"required"`
			Location    *string   `json:"location"`
			Department  *string   `json:"department"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)
		session, err := svc.CreateSession(c.Request.Context(), attendance.CreateSessionInput{
			Title:       req.Title,
			Description: req.Description,
			CreatedBy:   claims.UserID,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			Location:    req.Location,
			Department:  req.Department,
		})
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		_ = app.ReloadSessions(c.Request.Context())
		c.JSON(http.StatusCreated, gin.H{"session": session})
	})

	adminGroup.PATCH("/sessions/:id/status", func(c *gin.Context) {
		var req struct {
			IsActive *bool `json:"isActive" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive); err != nil {
			c.JSON(errStatus(err), gin.H{"error": userMessage(err)})
			return
		}
		_ = app.ReloadSessions(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	adminGroup.GET("/export", func(c *gin.Context) {
		blob, err := st.Export(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="attendance.db"`)
		c.Data(http.StatusOK, "application/octet-stream", blob)
	})

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

// errStatus maps domain failures to HTTP statuses. Policy rejections and
// lost uniqueness races are ordinary rejections, never 500s.
func errStatus(err error) int {
	switch {
	case errors.Is(err, attendance.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, attendance.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, attendance.ErrSessionNotFound), errors.Is(err, attendance.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrDuplicateIdentity),
		errors.Is(err, attendance.ErrAlreadyMarked),
		errors.Is(err, attendance.ErrDuplicateAttendance),
		errors.Is(err, attendance.ErrSessionInactive),
		errors.Is(err, attendance.ErrSessionNotStarted),
		errors.Is(err, attendance.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrInvalidScanPayload):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage keeps raw internals out of responses for unexpected errors.
func userMessage(err error) string {
	if errStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
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
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
