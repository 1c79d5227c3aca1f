// Package monitoring exposes the worker's operational HTTP surface: a
// database-backed health probe and the Prometheus metrics endpoint.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const probeTimeout = 2 * time.Second

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp   ProbeStatus = "up"
	StatusDown ProbeStatus = "down"
)

// HealthResponse is the JSON body served by the health endpoint.
type HealthResponse struct {
	Status   ProbeStatus `json:"status"`
	Database ProbeStatus `json:"database"`
}

// Options toggle the exposed endpoints.
type Options struct {
	HealthEnabled  bool
	MetricsEnabled bool
	MetricsPath    string
}

// NewRouter builds the gin router serving /healthz and the metrics
// endpoint. Gin runs in release mode; this surface is operational only and
// carries no application traffic.
func NewRouter(db *gorm.DB, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if opts.HealthEnabled {
		router.GET("/healthz", healthHandler(db))
	}

	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	return router
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{Status: StatusUp, Database: StatusUp}

		if err := pingDatabase(c.Request.Context(), db); err != nil {
			resp.Status = StatusDown
			resp.Database = StatusDown
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return sqlDB.PingContext(probeCtx)
}
