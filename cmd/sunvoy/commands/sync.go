package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sunvoy-scraper/internal/store"
	"sunvoy-scraper/internal/sunvoy"
	"sunvoy-scraper/internal/usersync"
	"sunvoy-scraper/lib/restyutil"
	"sunvoy-scraper/lib/serviceutil"
	"sunvoy-scraper/lib/telemetry"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetches every user and the current user and writes them to the output file.",
	Run: func(cmd *cobra.Command, args []string) {
		err := runSync(cmd.Context())
		if err != nil {
			serviceutil.Fatal("sync failed", err)
		}
	},
}

func runSync(ctx context.Context) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	otel, err := telemetry.Setup(ctx, "sunvoy-scraper", cfg.Otlp)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()

	dumpDir := cfg.DumpHttpDir
	if *dumpHttp != "" {
		dumpDir = *dumpHttp
	}
	var dump restyutil.Output
	if dumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			return fmt.Errorf("create http dump dir: %w", err)
		}
		dump = out
	}

	tokens, closeTokens, err := cfg.openTokenStore()
	if err != nil {
		return err
	}
	defer closeTokens()

	tel := telemetry.SlogAPI{}
	sessions := sunvoy.NewSessions(tokens, cfg.clientOptions(dump), cfg.credentials(), tel)
	out := store.NewFileUsersWriter(cfg.OutputFile)

	users, err := usersync.NewSyncer(sessions, out, tel).Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("data saved", "count", len(users), "path", out.Path())
	return nil
}
