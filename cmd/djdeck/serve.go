package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/config"
	"github.com/ac-schroeder/DJApp/internal/deck"
	"github.com/ac-schroeder/DJApp/internal/library"
	"github.com/ac-schroeder/DJApp/internal/logger"
	"github.com/ac-schroeder/DJApp/internal/server"
	"github.com/ac-schroeder/DJApp/internal/stream"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run both decks, the mixer and the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				cfg.Port = port
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, *cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides DJ_PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	reg := audio.NewRegistry(cfg.FFmpegPath)

	lib, persist := openLibrary(cfg, reg)

	left := audio.NewDeck("left", reg, cfg.SpeedMax)
	right := audio.NewDeck("right", reg, cfg.SpeedMax)
	defer left.Close()
	defer right.Close()

	engine := stream.NewEngine(audio.NewMixer(left, right))
	broadcaster := stream.NewBroadcaster()
	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	api := server.New(lib,
		[]*deck.Controller{deck.NewController(left), deck.NewController(right)},
		server.Options{
			PositionPoll: cfg.PositionPoll,
			Monitor:      stream.NewMonitorHandler(broadcaster, cfg.FFmpegPath),
			WebRTC:       webrtcHandler,
		},
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})
	g.Go(func() error {
		broadcaster.Run(ctx, engine.Frames())
		return nil
	})
	if cfg.WatchDir != "" {
		g.Go(func() error {
			w := library.NewWatcher(lib, cfg.WatchDir, reg.Supports)
			if err := w.Run(ctx); err != nil {
				logger.Warn("watch folder disabled", logger.String("dir", cfg.WatchDir), logger.ErrorField(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("djdeck live", logger.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		webrtcHandler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			// Monitor streams never go idle.
			return httpServer.Close()
		}
		return nil
	})

	err := g.Wait()
	if persist {
		if saveErr := lib.Save(); saveErr != nil {
			logger.Error("library not saved on shutdown", logger.ErrorField(saveErr))
		}
	}
	return err
}

// openLibrary loads the library file. A missing file is a first run and the
// library persists as usual. A file that exists but cannot be read is left
// untouched: the library starts empty and persist is false, so neither
// mutations nor shutdown write over it.
func openLibrary(cfg config.Config, prober library.Prober) (lib *library.Library, persist bool) {
	lib = library.New(library.Config{Path: cfg.LibraryFile, SaveOnMutation: cfg.SaveOnMutation}, prober)
	if err := lib.Load(); err != nil {
		logger.Warn("library file unreadable, starting empty without saving",
			logger.String("path", cfg.LibraryFile), logger.ErrorField(err))
		return library.New(library.Config{Path: cfg.LibraryFile}, prober), false
	}
	return lib, true
}
