// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, rate limiting, and the signature gate
// that guards the event endpoints.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Signature verification on event writes only; reads stay unsigned
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/attribution"
	"github.com/glowcart/commerce-backend/internal/config"
	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/http/handlers"
	"github.com/glowcart/commerce-backend/internal/http/middleware"
	"github.com/glowcart/commerce-backend/internal/money"
	"github.com/glowcart/commerce-backend/internal/repo"
	"github.com/glowcart/commerce-backend/internal/services"
)

// attrStore adapts the repository free functions to the attribution.Store
// interface expected by the resolver. This keeps attribution decoupled from
// the concrete repo package while reusing existing functions.
type attrStore struct {
	db *gorm.DB
}

// GetStory proxies repo.GetStory.
func (s attrStore) GetStory(ctx context.Context, id string) (*domain.Story, error) {
	return repo.GetStory(ctx, s.db, id)
}

// GetCreator proxies repo.GetCreator.
func (s attrStore) GetCreator(ctx context.Context, id string) (*domain.Creator, error) {
	return repo.GetCreator(ctx, s.db, id)
}

// LatestClick proxies repo.LatestClick.
func (s attrStore) LatestClick(ctx context.Context, userID, productID string, since, until time.Time) (*domain.StoryClick, error) {
	return repo.LatestClick(ctx, s.db, userID, productID, since, until)
}

// IsNotFound maps repo.ErrNotFound to the resolver's "no record" answer.
func (attrStore) IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and
// rate limiting, CORS and security headers, health and metrics endpoints,
// and then mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with signature/credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per client IP, bypass on replay)
//  9. CORS and security headers
//
// The signature gate is mounted on the /events group only, after all of the
// above, so reads and health checks never require a signed request.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging; X-Signature and credentials are masked
	r.Use(middleware.RedactingLogger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", middleware.MetricsHandler())

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, key string) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, key)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	corsHeaders := []string{
		"Origin", "Content-Type", "Accept",
		middleware.HeaderTimestamp, middleware.HeaderSignature, middleware.HeaderIdempotencyKey,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, found := allowed[origin]; found {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Optional Swagger UI
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/config
	defaultRate, err := money.ParseRate(cfg.Attribution.DefaultRate)
	if err != nil {
		panic("config: DEFAULT_COMMISSION_RATE: " + err.Error())
	}
	resolver := &attribution.Resolver{
		Store:       attrStore{db: db},
		Lookback:    cfg.Attribution.Lookback,
		DefaultRate: defaultRate,
	}

	ingestSvc := &services.IngestService{DB: db, IdempotencyTTL: cfg.Gate.IdempotencyTTL}
	purchaseSvc := &services.PurchaseService{DB: db, Resolver: resolver, IdempotencyTTL: cfg.Gate.IdempotencyTTL}
	refundSvc := &services.RefundService{DB: db, IdempotencyTTL: cfg.Gate.IdempotencyTTL}

	eh := handlers.NewEventHandlers(ingestSvc, purchaseSvc, refundSvc)
	rh := handlers.NewReportHandlers(db)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Signed event writes
		events := api.Group("/events")
		events.Use(middleware.SignatureGate(middleware.SignatureOptions{
			Secret: cfg.Gate.SigningSecret,
			Skew:   cfg.Gate.TimestampSkew,
		}))
		{
			events.POST("/impressions", eh.RecordImpression)
			events.POST("/clicks", eh.RecordClick)
			events.POST("/purchases", eh.RecordPurchase)
			events.POST("/refunds", eh.RecordRefund)
		}

		// Unsigned reads. Compressed: funnel pages carry many rows, event
		// writes stay uncompressed so the signature covers the raw body.
		reads := api.Group("")
		reads.Use(gzip.Gzip(gzip.DefaultCompression))
		reads.GET("/funnel/daily", rh.GetFunnelDaily)
		reads.GET("/creators/:id/earnings", rh.GetCreatorEarnings)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Requests exceeding the cap cause downstream body
// reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
