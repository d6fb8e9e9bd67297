package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured.
// metrics may be nil.
func NewServer(handler *Handler, apiAccessKey string, metrics http.Handler) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders:   []string{"Content-Length", "X-Sitemap-Urls", "X-Cache"},
		MaxAge:          12 * time.Hour,
	}))

	setupRoutes(r, handler, apiAccessKey, metrics)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string, metrics http.Handler) {
	// Sitemap documents live at the root, e.g. /sitemap.xml
	r.NoRoute(handler.GetSitemapFile)

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// API endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/sitemaps/generate", handler.APIGenerate)
			api.POST("/sitemaps/submit", handler.APISubmit)
			api.POST("/sitemaps/refresh", handler.APIRefresh)
			api.POST("/cache/clear", handler.APIClearCache)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		cfg := handler.generator.Config()

		endpoints := map[string]string{
			"sitemap": "/" + cfg.Filename,
			"health":  "/health",
			"stats":   "/stats",
		}
		if metrics != nil {
			endpoints["metrics"] = "/metrics"
		}

		if apiAccessKey != "" {
			endpoints["generate"] = "/api/sitemaps/generate (POST, requires X-API-Key header)"
			endpoints["submit"] = "/api/sitemaps/submit (POST, requires X-API-Key header)"
			endpoints["refresh"] = "/api/sitemaps/refresh (POST, requires X-API-Key header)"
			endpoints["clear_cache"] = "/api/cache/clear (POST, requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Sitemap Comb",
			"version":     handler.version,
			"description": "XML sitemap generator for content sites",
			"base_url":    cfg.BaseURL,
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
