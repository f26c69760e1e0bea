package controlplane

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openmined/photoframe/internal/controlplane/middleware"
	"github.com/openmined/photoframe/internal/version"
)

type RouteConfig struct {
	Auth        middleware.TokenAuthConfig
	RateLimit   string
	CORSOrigins []string
	Handler     *PhotosHandler
	Registry    *prometheus.Registry
}

func SetupRoutes(cfg *RouteConfig) (http.Handler, error) {
	r := gin.New()

	rate := cfg.RateLimit
	if rate == "" {
		rate = middleware.DefaultRate
	}
	rateLimiter, err := middleware.RateLimiter(rate)
	if err != nil {
		return nil, err
	}

	h := cfg.Handler

	r.Use(middleware.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Gzip())

	r.GET("/", IndexHandler)
	if cfg.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(cfg.Auth))
	{
		v1.GET("/status", h.Status)
		v1.GET("/events", h.Events)
		v1.GET("/photos", h.List)

		mutating := v1.Group("")
		mutating.Use(rateLimiter)
		{
			mutating.POST("/sync", h.Sync)
			mutating.POST("/purge", h.Purge)
			mutating.POST("/photos", h.Ingest)
			mutating.POST("/photos/batch", h.IngestBatch)
			mutating.POST("/photos/import", h.Import)
			mutating.POST("/photos/remove", h.Remove)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  ErrCodeNotFound,
			"error": "not found",
		})
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}
