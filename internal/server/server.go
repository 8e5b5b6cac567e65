package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/behzodk/shortlink/internal/analytics"
	"github.com/behzodk/shortlink/internal/api"
	"github.com/behzodk/shortlink/internal/config"
	"github.com/behzodk/shortlink/internal/middleware"
	"github.com/behzodk/shortlink/internal/observability"
	"github.com/behzodk/shortlink/internal/repository"
	"github.com/behzodk/shortlink/internal/service"
)

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRouter initializes all dependencies and returns a configured Gin router.
// This is useful for testing where you don't need the full HTTP server.
// The recorder is the visit sink the resolver writes to; pass nil to use
// direct database inserts.
func NewRouter(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, obs *observability.Observability, recorder service.VisitRecorder) *gin.Engine {
	linkRepo := repository.NewLinkRepository(db)
	cachedRepo := repository.NewCachedLinkRepository(linkRepo, cache, cfg.Cache.TTL)
	visitRepo := repository.NewVisitRepository(db)

	if recorder == nil {
		recorder = visitRepo
	}
	recorder = analytics.NewBreakerRecorder("visit-recorder", recorder)

	linkService := service.NewLinkService(cachedRepo, visitRepo, cfg.App.BaseURL, cfg.App.SlugRetries)
	resolver := service.NewResolver(cachedRepo, recorder)
	handler := api.NewHandler(linkService, resolver, db, &redisPinger{client: cache}, obs.Logger, cfg.App.VisitLimit)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("shortlink"))
	r.Use(middleware.Logging(obs.Logger))

	handler.RegisterRoutes(r)

	if obs.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})))
	}

	return r
}

// NewServer initializes all dependencies and returns a configured HTTP server.
// This includes the router plus HTTP server settings (timeouts, address, etc.).
func NewServer(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, obs *observability.Observability, recorder service.VisitRecorder) *http.Server {
	router := NewRouter(cfg, db, cache, obs, recorder)

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
