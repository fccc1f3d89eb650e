// Command shadowmarket serves the shadow market integration layer: it loads
// configuration, validates it, wires the adapters and runs the API server
// until interrupted.
//
//	shadowmarket [-config config.toml]
//	shadowmarket seal-secret -out prover-secret.json < secret.txt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/shadowmarket/internal/app"
	"github.com/alanyoungcy/shadowmarket/internal/config"
	"github.com/alanyoungcy/shadowmarket/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "seal-secret" {
		if err := sealSecret(os.Args[2:], os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "seal-secret: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "", "path to a TOML configuration file (defaults and SHADOW_* env when empty)")
	flag.Parse()

	logger := newLogger("info")
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shadowmarket starting",
		slog.String("mode", cfg.Integration.Mode),
		slog.String("config", *configPath),
	)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		application.Close()
		os.Exit(1)
	}

	logger.Info("shadowmarket stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// sealSecret encrypts the prover API secret read from in with the password
// in SHADOW_PROVER_SECRET_PASSWORD and writes it to -out.
func sealSecret(args []string, in io.Reader) error {
	fs := flag.NewFlagSet("seal-secret", flag.ContinueOnError)
	out := fs.String("out", "prover-secret.json", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password := os.Getenv("SHADOW_PROVER_SECRET_PASSWORD")
	if password == "" {
		return errors.New("SHADOW_PROVER_SECRET_PASSWORD is not set")
	}
	raw, err := io.ReadAll(io.LimitReader(in, 64<<10))
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return errors.New("empty secret on stdin")
	}

	blob, err := crypto.EncryptSecret(secret, password)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, blob, 0o600)
}
