package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lcamail-engine/internal/auth"
	"lcamail-engine/internal/coverletter"
	"lcamail-engine/internal/dispatch"
	"lcamail-engine/internal/events"
	"lcamail-engine/internal/httpapi"
	"lcamail-engine/internal/lca"
	"lcamail-engine/internal/store"
	"lcamail-engine/internal/tracking"
)

var (
	servePort int
	serveWarm bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP engine",
	Long: `Run the engine in the foreground: the LCA query API, the mail dispatcher,
application tracking and the SSE progress stream.

Only one engine may serve a data directory at a time. Use Ctrl+C, or
POST /shutdown from localhost with the token in engine.token, to stop.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides app.port)")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", true, "load the LCA file in the background at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := validation.Err(); err != nil {
		return err
	}
	if servePort > 0 {
		cfg.App.Port = servePort
	}
	log := logger

	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("another engine is already serving %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	dataset := lca.NewDataset(lca.OptionsFromConfig(cfg), log)
	index := lca.NewFilterIndex(dataset, log)
	hub := events.NewHub()

	tracker := store.Tracker{DB: db.Pool}
	var logos tracking.LogoResolver
	if cfg.Tracking.FetchLogos {
		logos = store.NewLogoCache(db.Pool)
	}
	fwd := tracking.NewForwarder(tracker, logos, cfg.Tracking.QueueSize, log)

	dispatcher := dispatch.New(dispatch.Config{
		Pacing:        dispatch.PacingFromConfig(cfg),
		SendTimeout:   cfg.SendTimeout(),
		VerifyTimeout: cfg.ConnectTimeout(),
	}, tracker, fwd, hub, log)

	letters, err := coverletter.New(cfg, log)
	if err != nil {
		return fmt.Errorf("cover letter model: %w", err)
	}
	if !letters.Configured() {
		log.Warn("OPENAI_API_KEY not set; cover letter generation disabled")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		DB:          db.Pool,
		Hub:         hub,
		Log:         log,
		CfgVal:      &cfgVal,
		UserCfgPath: cfgPath,
		Dataset:     dataset,
		Index:       index,
		Dispatcher:  dispatcher,
		Auth:        auth.NewService(db.Pool, auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL())),
		CoverLetter: letters,
		Senders:     httpapi.SMTPSenders(log),
	})

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	token, err := shutdownToken(dataDir)
	if err != nil {
		return fmt.Errorf("shutdown token: %w", err)
	}
	router.Post("/shutdown", shutdownHandler(token, stop))

	addr := net.JoinHostPort(cfg.App.Bind, strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Info("engine listening",
		zap.String("addr", "http://"+ln.Addr().String()),
		zap.String("db", cfg.DBPath()),
		zap.String("config", cfgPath),
	)

	g, gctx := errgroup.WithContext(ctx)
	srv := newHTTPServer(gctx, router)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if serveWarm {
		g.Go(func() error {
			if err := dataset.EnsureLoaded(gctx); err != nil {
				// not fatal: the file may be dropped in later
				log.Warn("lca warm-up failed", zap.Error(err))
				return nil
			}
			st := dataset.Stats()
			log.Info("lca data loaded", zap.Int("records", st.Records), zap.String("path", st.Path))
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", zap.Error(err))
		}
		if err := fwd.Close(shutdownCtx); err != nil {
			log.Error("tracking drain", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return cmd.Context().Err()
}
