package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/api"
	"github.com/d60-Lab/friendlyvoice/internal/api/handler"
	"github.com/d60-Lab/friendlyvoice/internal/api/middleware"
	"github.com/d60-Lab/friendlyvoice/internal/auth"
	"github.com/d60-Lab/friendlyvoice/internal/ecosystem"
	"github.com/d60-Lab/friendlyvoice/internal/feed"
	"github.com/d60-Lab/friendlyvoice/internal/media"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/session"
	"github.com/d60-Lab/friendlyvoice/internal/social"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
	"github.com/d60-Lab/friendlyvoice/pkg/tracing"
)

var (
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Minute, "how often idle sessions are reclaimed")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "grace period for in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			Release:          version,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	store, err := media.New(ctx, cfg.Media)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var reconciler *social.Reconciler
	if cfg.Social.Reconcile {
		reconciler = social.NewReconciler(st.docs, cfg.Social.ReconcileQueue)
		stopReconciler := reconciler.Start(cfg.Social.ReconcileWorkers)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stopReconciler(sctx); err != nil {
				logger.Warn("reconciler did not drain", zap.Int("queued", reconciler.QueueLen()), zap.Error(err))
			}
		}()
		middleware.Gauge(reg, "friendlyvoice_reconcile_queue_length", "Follower edges waiting to be repaired",
			func() float64 { return float64(reconciler.QueueLen()) })
		middleware.Gauge(reg, "friendlyvoice_reconcile_failed_total", "Follower edge repairs that failed",
			func() float64 { return float64(reconciler.Failed()) })
	}
	graph := social.NewGraph(st.docs, reconciler)

	voces := feed.NewService(st.docs)
	if err := voces.Load(ctx); err != nil {
		return fmt.Errorf("load feed: %w", err)
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret)
	backend := auth.NewBackend(st.creds, tokens, auth.LogMailer{}, cfg.Auth)
	sessions := session.NewManager(session.Options{
		NewProvider: func() auth.Provider { return backend.NewClient() },
		NewMirror: func(namespace string) (mirror.Mirror, error) {
			return mirror.New(cfg.Mirror, st.redis, namespace)
		},
		Docs:        st.docs,
		Graph:       graph,
		Tokens:      tokens,
		TokenTTL:    cfg.Auth.SessionTTL,
		IdleTimeout: cfg.Auth.SessionIdle,
	})
	stopSweeper := sessions.StartSweeper(sweepInterval)
	defer func() {
		stopSweeper()
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions.CloseAll(cctx)
	}()

	h := handler.NewHandler(handler.Deps{
		Sessions:   sessions,
		Backend:    backend,
		Feed:       voces,
		Graph:      graph,
		Ecosystems: ecosystem.NewCatalogue(st.docs),
		Media:      store,
		MediaCfg:   cfg.Media,
	})

	gin.SetMode(cfg.Server.Mode)
	router, err := api.NewRouter(api.Deps{
		Config:   cfg,
		Handler:  h,
		Sessions: sessions,
		Images:   media.NewHostPolicy(cfg.Images.AllowedHosts),
		Registry: reg,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
