package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ac-schroeder/DJApp/internal/config"
	"github.com/ac-schroeder/DJApp/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg         config.Config
		libraryFile string
	)

	root := &cobra.Command{
		Use:           "djdeck",
		Short:         "Two-deck DJ playback engine with a persisted track library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			if libraryFile != "" {
				cfg.LibraryFile = libraryFile
			}
			return logger.InitLogger(logger.Config{
				Level:      logger.LogLevel(cfg.LogLevel),
				OutputPath: cfg.LogFile,
				MaxSize:    cfg.LogMaxSize,
				MaxBackups: cfg.LogMaxBackups,
				MaxAge:     cfg.LogMaxAge,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&libraryFile, "library", "", "library file (overrides DJ_LIBRARY_FILE)")

	root.AddCommand(newServeCmd(&cfg), newLibraryCmd(&cfg))
	return root
}
