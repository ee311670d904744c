// Package httpapi wires the HTTP transport (Gin) to the call-routing
// services, middleware and handlers. It owns the cross-cutting concerns:
// tracing, correlation IDs, access logging with redaction, panic recovery,
// metrics, CORS, security headers, webhook signature checks, delivery
// deduplication, rate limiting and bearer authentication.
//
// Route groups:
//   - /api/calls (provider webhooks): signature check, then delivery dedup, no rate limit
//   - /api/calls (reporting): rate limited
//   - /api/extensions: bearer auth, rate limited
//   - /api/auth: rate limited, no-store
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/config"
	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/http/handlers"
	"github.com/tbourn/go-call-router/internal/http/middleware"
	"github.com/tbourn/go-call-router/internal/repo"
	"github.com/tbourn/go-call-router/internal/services"

	_ "github.com/tbourn/go-call-router/docs"
)

// callStoreShim adapts the repository free functions to services.CallStore
// and services.CallLookup.
type callStoreShim struct{}

func (callStoreShim) FindExtensionByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Extension, error) {
	return repo.FindExtensionByCode(ctx, db, code)
}

func (callStoreShim) CreateCall(ctx context.Context, db *gorm.DB, in repo.NewCall) (*domain.CallRecord, error) {
	return repo.CreateCall(ctx, db, in)
}

func (callStoreShim) UpdateCallBySid(ctx context.Context, db *gorm.DB, callSid string, patch repo.CallPatch) (int64, error) {
	return repo.UpdateCallBySid(ctx, db, callSid, patch)
}

func (callStoreShim) FindCallBySid(ctx context.Context, db *gorm.DB, callSid string) (*domain.CallRecord, error) {
	return repo.FindCallBySid(ctx, db, callSid)
}

func (callStoreShim) ListCalls(ctx context.Context, db *gorm.DB) ([]domain.CallRecord, error) {
	return repo.ListCalls(ctx, db)
}

func (callStoreShim) CallsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.CallsStats(ctx, db)
}

// extensionRepoShim adapts the repository to services.ExtensionRepo.
type extensionRepoShim struct{}

func (extensionRepoShim) CreateExtension(ctx context.Context, db *gorm.DB, number, code string) (*domain.Extension, error) {
	return repo.CreateExtension(ctx, db, number, code)
}

func (extensionRepoShim) ListExtensions(ctx context.Context, db *gorm.DB) ([]domain.Extension, error) {
	return repo.ListExtensions(ctx, db)
}

func (extensionRepoShim) GetExtension(ctx context.Context, db *gorm.DB, id string) (*domain.Extension, error) {
	return repo.GetExtension(ctx, db, id)
}

func (extensionRepoShim) UpdateExtension(ctx context.Context, db *gorm.DB, id, number, code string) (*domain.Extension, error) {
	return repo.UpdateExtension(ctx, db, id, number, code)
}

func (extensionRepoShim) DeleteExtension(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteExtension(ctx, db, id)
}

// userRepoShim adapts the repository to services.UserRepo.
type userRepoShim struct{}

func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, name, email, passwordHash)
}

func (userRepoShim) FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.FindUserByEmail(ctx, db, email)
}

// Tokens issues and verifies bearer tokens. *auth.Manager implements it.
type Tokens interface {
	services.TokenIssuer
	middleware.TokenVerifier
}

// Deps are the process-wide collaborators built in main.
type Deps struct {
	DB      *gorm.DB
	Gateway services.RecordingGateway
	Tokens  Tokens
	// Cache is optional; nil disables stats caching.
	Cache services.SnapshotCache
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Global middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Access log (RedactingLogger, or Logger when LOG_PRETTY)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. CORS and security headers
//
// Webhook routes then run TwilioSignature before WebhookDedup. They are not
// rate limited: every provider delivery must be answered with TwiML.
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if cfg.LogPretty {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	}
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, handlers.MessageResponse{Success: true, Message: "Server is running"})
	})
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Services
	db := deps.DB
	callSvc := services.NewCallService(db, callStoreShim{}, cfg.Twilio.PublicBaseURL)

	recSvc := services.NewRecordingService(db, callStoreShim{}, deps.Gateway, cfg.Twilio.Timeout)
	recSvc.CountTimeout = cfg.Twilio.CountTimeout
	if loc, err := time.LoadLocation(cfg.StatsTimezone); err == nil {
		recSvc.Location = loc
	}
	if deps.Cache != nil {
		recSvc.Cache = deps.Cache
		recSvc.CacheTTL = cfg.StatsCacheTTL
	}

	extSvc := services.NewExtensionService(db, extensionRepoShim{})
	authSvc := services.NewAuthService(db, userRepoShim{}, deps.Tokens)

	h := handlers.New(callSvc, recSvc, extSvc, authSvc)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := r.Group("/api")

	// Provider webhooks
	hooks := api.Group("/calls",
		middleware.TwilioSignature(middleware.SignatureOptions{
			Enabled:       cfg.Twilio.ValidateSignature,
			AuthToken:     cfg.Twilio.AuthToken,
			PublicBaseURL: cfg.Twilio.PublicBaseURL,
		}),
		middleware.WebhookDedup(middleware.WebhookDedupOptions{}, deliveryStore{db: db, ttl: cfg.WebhookDedupTTL}),
	)
	{
		hooks.POST("/incoming", h.IncomingCall)
		hooks.POST("/handle-extension", h.HandleExtension)
		hooks.POST("/recording", h.RecordingCallback)
		hooks.POST("/status-update", h.StatusCallback)
	}

	// Reporting
	reports := api.Group("/calls", rl.Handler())
	{
		reports.GET("/logs", h.ListCallLogs)
		reports.GET("/get-recording", h.GetRecordings)
		reports.GET("/audio-stats", h.AudioStats)
	}

	// Extension directory
	ext := api.Group("/extensions", middleware.RequireAuth(deps.Tokens), rl.Handler())
	{
		ext.GET("", h.ListExtensions)
		ext.GET("/:id", h.GetExtension)
		ext.POST("", h.CreateExtension)
		ext.PUT("/:id", h.UpdateExtension)
		ext.DELETE("/:id", h.DeleteExtension)
	}

	// Administrator accounts
	authGroup := api.Group("/auth", rl.Handler(), middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}
}

// deliveryStore keeps webhook delivery reservations in the database for ttl.
type deliveryStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (d deliveryStore) Reserve(ctx context.Context, endpoint, token, callSid string, now time.Time) (bool, error) {
	ttl := d.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return repo.ReserveWebhookDelivery(ctx, d.db, endpoint, token, callSid, ttl, now)
}

func (d deliveryStore) Complete(ctx context.Context, endpoint, token string, status int) error {
	return repo.CompleteWebhookDelivery(ctx, d.db, endpoint, token, status)
}

func (d deliveryStore) Release(ctx context.Context, endpoint, token string) error {
	return repo.ReleaseWebhookDelivery(ctx, d.db, endpoint, token)
}

// corsMiddleware allows all origins when none are configured and otherwise
// echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization"}
	expose := []string{"X-Request-ID", "Content-Length", "ETag"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Set ACAO even without an Origin header, for health checks and tests.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    methods,
				AllowHeaders:    headers,
				ExposeHeaders:   expose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  methods,
			AllowHeaders:  headers,
			ExposeHeaders: expose,
			MaxAge:        12 * time.Hour,
		}),
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
