package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"domo/internal/clock"
	"domo/internal/config"
	"domo/internal/graph"
	"domo/internal/handlers"
	"domo/internal/logger"
	"domo/internal/metrics"
	"domo/internal/repository"
	"domo/internal/repository/db"
	"domo/internal/server"
	"domo/internal/service"
	"domo/internal/transport"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	root := &cobra.Command{
		Use:   "domo",
		Short: "Home automation telemetry client",
		Long: `domo keeps a connection to the home controller, caches sensor history
and actuator settings locally and serves a dashboard over HTTP.

Examples:
  domo
  domo run --config /etc/domo/config.yml
  domo hash-password`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), v, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/config.yml)")
	root.PersistentFlags().String("log-level", "", "debug | info | warn | error")
	root.PersistentFlags().String("port", "", "dashboard listen port")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("port", root.PersistentFlags().Lookup("port"))

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to the controller and serve the dashboard",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runClient(cmd.Context(), v, configPath)
			},
		},
		newHashPasswordCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "domo %s (%s)\n", version, commit)
			},
		},
	)
	return root
}

// newHashPasswordCmd prints the bcrypt hash for dashboard.password_hash.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash a dashboard password for the config file",
		Long: `Print the bcrypt hash to put in dashboard.password_hash.
Without an argument the password is read from the first line of stdin.

Examples:
  domo hash-password 's3cret'
  echo 's3cret' | domo hash-password`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func passwordArg(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}

// runClient wires the client core to the dashboard and blocks until
// SIGINT/SIGTERM.
func runClient(parent context.Context, v *viper.Viper, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}
	log := logger.Get(cfg.LogLevel)

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Errorw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
		return err
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	transforms, err := service.NewTransformTable(cfg.Actuators)
	if err != nil {
		return fmt.Errorf("actuators: %w", err)
	}

	// wire dependencies
	clk := clock.Real()
	m := metrics.New()
	hub := handlers.NewHub(graph.NewMemo(), log.Named("hub"))
	client := service.NewService(service.Options{
		Connection: service.ConnectionOptions{
			URL:              cfg.Control.URL,
			CredentialField:  cfg.Control.CredentialField,
			Credential:       cfg.Control.Credential,
			HandshakeTimeout: cfg.Control.HandshakeTimeout,
		},
		Priority:   cfg.Sensors.Priority,
		Units:      cfg.Sensors.Units,
		Transforms: transforms,
		Location:   time.Local,
	}, service.Deps{
		Dialer:   transport.NewDialer(log.Named("transport")),
		Repos:    repository.NewRepository(sqlDB),
		Renderer: hub,
		Controls: hub,
		Clock:    clk,
		Metrics:  m,
		Log:      log,
	})
	auth := service.NewDashboardAuth(cfg.Dashboard.PasswordHash, cfg.Dashboard.SigningKey, cfg.Dashboard.TokenTTL, clk)
	apiHandler := handlers.NewHandler(handlers.Deps{
		Client:  client,
		Auth:    auth,
		Hub:     hub,
		Metrics: m,
		Graph: handlers.GraphOptions{
			Width:            cfg.Graph.Width,
			Height:           cfg.Graph.Height,
			DevicePixelRatio: cfg.Graph.DevicePixelRatio,
			Location:         time.Local,
		},
		Clock: clk,
		Log:   log.Named("http"),
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Infow("starting", "version", version, "control_url", cfg.Control.URL, "port", cfg.Port,
		"dashboard_auth", auth.Enabled())

	errCh := make(chan error, 2)
	go func() { errCh <- client.Run(ctx) }()
	go func() { errCh <- server.New(log.Named("http")).Run(ctx, cfg.Port, apiHandler.InitRoutes()) }()

	// The first component to exit takes the other one down.
	first := <-errCh
	cancel()
	second := <-errCh
	log.Infow("stopped")
	return errors.Join(first, second)
}
