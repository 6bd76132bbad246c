// Package handler holds the plain-HTTP endpoints next to the WebSocket
// surface: health, metrics and cache inspection.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syncboard/collab-server/internal/cache"
	"github.com/syncboard/collab-server/internal/config"
	"github.com/syncboard/collab-server/internal/redisx"
	"github.com/syncboard/collab-server/internal/worker"
	"github.com/syncboard/collab-server/internal/ws"
	"go.uber.org/zap"
)

// RunningReporter reports whether a background loop is alive.
type RunningReporter interface {
	Running() bool
}

// OpsHandler serves the operational endpoints.
type OpsHandler struct {
	log      *zap.Logger
	rdb      *redisx.Client
	cache    *cache.Cache
	conns    *ws.ConnTable
	writer   *worker.Writer
	listener RunningReporter
	promReg  *prometheus.Registry
}

func NewOpsHandler(log *zap.Logger, rdb *redisx.Client, l1 *cache.Cache, conns *ws.ConnTable, writer *worker.Writer, listener RunningReporter, promReg *prometheus.Registry) *OpsHandler {
	return &OpsHandler{
		log:      log.Named("ops"),
		rdb:      rdb,
		cache:    l1,
		conns:    conns,
		writer:   writer,
		listener: listener,
		promReg:  promReg,
	}
}

// Health reports readiness: Redis reachable, worker and listener loops alive.
func (h *OpsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	redisOK := h.rdb.Ping(ctx).Err() == nil
	workerOK := h.writer.Running()
	listenerOK := h.listener.Running()

	status := http.StatusOK
	if !redisOK || !workerOK || !listenerOK {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   statusWord(status == http.StatusOK),
		"redis":    statusWord(redisOK),
		"worker":   statusWord(workerOK),
		"listener": statusWord(listenerOK),
		"version":  config.Version,
	})
}

func statusWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "down"
}

// Metrics returns the JSON counters dashboards poll.
func (h *OpsHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"writer":       h.writer.GetStats(),
		"connections":  h.conns.Stats(),
		"cached_lists": h.cache.Len(),
	})
}

// Prometheus exposes the registry in the exposition format.
func (h *OpsHandler) Prometheus() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.promReg, promhttp.HandlerOpts{}))
}

// CacheDump returns the full L1 contents. Debug aid; not for production
// exposure beyond the private network.
func (h *OpsHandler) CacheDump(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count": h.cache.Len(),
		"lists": h.cache.Dump(),
	})
}

// CacheFlush empties L1. The next access per list reloads from L2/L3.
func (h *OpsHandler) CacheFlush(c *gin.Context) {
	n := h.cache.Len()
	h.cache.FlushAll()
	h.log.Info("cache flushed", zap.Int("evicted", n))
	c.JSON(http.StatusOK, gin.H{"evicted": n})
}
