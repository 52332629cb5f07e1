package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tastebase/tastebase/internal/server"
	"github.com/tastebase/tastebase/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Tastebase API server",
		Long:  "Start the HTTP server that exposes the recipe catalog, account, and usage APIs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	logger := newLogger(dev)

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", viper.GetString("store.driver"))

	authSvc := newAuthService(st)
	usageSvc := service.NewUsageService(st)

	// Persist configured usage limits so the stats endpoint reports them.
	ctx := context.Background()
	if v := viper.GetInt64("usage.monthly_limit"); v > 0 {
		if err := st.SetSetting(ctx, "usage.monthly_limit", strconv.FormatInt(v, 10)); err != nil {
			logger.Warn("set monthly limit", "error", err)
		}
	}
	if v := viper.GetInt64("usage.daily_limit"); v > 0 {
		if err := st.SetSetting(ctx, "usage.daily_limit", strconv.FormatInt(v, 10)); err != nil {
			logger.Warn("set daily limit", "error", err)
		}
	}

	hasAdmin, err := st.HasAdmin(ctx)
	if err != nil {
		logger.Warn("check for admin account", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: tastebase user create --role ADMIN")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	if v := viper.GetInt("rate_limit.requests_per_minute"); v > 0 {
		srvCfg.RequestsPerMinute = v
	}
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if raw := viper.GetString("server.shutdown_timeout"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			srvCfg.ShutdownTimeout = d
		}
	}

	srv := server.New(srvCfg, st, authSvc, usageSvc, logger)

	fmt.Printf("→ Tastebase\n")
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}

func newLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	if dev || viper.GetString("logging.level") == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("logging.format") == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
