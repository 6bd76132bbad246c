package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/syncboard/collab-server/internal/auth"
	"github.com/syncboard/collab-server/internal/cache"
	"github.com/syncboard/collab-server/internal/config"
	"github.com/syncboard/collab-server/internal/engine"
	"github.com/syncboard/collab-server/internal/http/handler"
	"github.com/syncboard/collab-server/internal/redisx"
	"github.com/syncboard/collab-server/internal/service"
	"github.com/syncboard/collab-server/internal/store"
	"github.com/syncboard/collab-server/internal/worker"
	"github.com/syncboard/collab-server/internal/ws"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger(cfg.IsDev())
	defer log.Sync()
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Infrastructure
	rdb, err := redisx.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Fatal("redis client creation failed", zap.Error(err))
	}

	db, err := store.New(ctx, log, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Engine
	l1 := cache.New(log)
	hub := ws.NewHub(log)
	conns := ws.NewConnTable(log)

	coord := engine.NewCoordinator(log, rdb.Client, l1, db)
	if err := coord.RegisterScripts(ctx); err != nil {
		log.Fatal("script registration failed", zap.Error(err))
	}

	writer := worker.NewWriter(log, db, cfg.WriterQueueSize, promReg)
	writer.Start()

	listener := engine.NewListener(log, rdb.Client, l1, hub)
	listener.Start(ctx)

	// Services
	perms := service.NewPermissionService(log, db)
	items := service.NewItemService(log, coord, writer, hub)
	lists := service.NewListService(log, coord, db, writer, hub)

	// WebSocket surface
	verifier := auth.NewVerifier(cfg.JWTSecret)
	dispatch := ws.NewDispatcher(log, conns, hub)
	ws.RegisterHandlers(dispatch, ws.Services{
		Items:       items,
		Lists:       lists,
		Permissions: perms,
	})
	wssrv := ws.NewServer(log, verifier, conns, hub, dispatch, cfg.CORSOrigins)

	// Create Gin router
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)

		if cfg.IsDev() {
			r.Use(cors.New(cors.Config{
				AllowOrigins:     cfg.CORSOrigins,
				AllowMethods:     []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}))
		} else { // Behind a TLS-terminating proxy
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
			}))
		}

		r.Use(func(c *gin.Context) {
			// Hard 1MB cap on request bodies; the real traffic is WebSocket.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		ops := handler.NewOpsHandler(log, rdb, l1, conns, writer, listener, promReg)
		r.GET("/health", ops.Health)
		r.GET("/metrics", ops.Metrics)
		r.GET("/metrics/prom", ops.Prometheus())
		r.GET("/cache", ops.CacheDump)
		r.POST("/cache/flush", ops.CacheFlush)

		r.GET("/ws", wssrv.Handle)
	}

	httpsrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr), zap.String("version", config.Version))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpsrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}

		listener.Stop()
		writer.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("collab-server %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

func buildLogger(isDev bool) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	if isDev {
		logConfig.Level.SetLevel(zap.DebugLevel)
	} else {
		logConfig.Level.SetLevel(zap.InfoLevel)
	}
	return zap.Must(logConfig.Build())
}
