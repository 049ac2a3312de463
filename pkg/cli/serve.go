package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getada/ada/pkg/config"
	"github.com/getada/ada/pkg/logging"
	"github.com/getada/ada/pkg/queryapi"
	"github.com/getada/ada/pkg/rpcserver"
	"github.com/getada/ada/pkg/session"
)

type serveFlags struct {
	configPath  string
	addr        string
	rps         int
	perAddr     int
	total       int
	sessionsDir string
	logLevel    string
	logFormat   string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON-RPC query server (foreground)",
	Long: `Start the query server. Tooling connects over HTTP POST /rpc with
JSON-RPC 2.0 requests; the server enforces per-client rate limits and
concurrency caps and dispatches to the registered query methods.`,
	Example: `  # Start with defaults
  ada serve

  # Start with a config file and a custom bind address
  ada serve --config ada.yaml --addr 127.0.0.1:9700

  # Loosen the per-client rate limit
  ada serve --max-rps 5000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd, &serveFlagVals)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	serveCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	serveCmd.Flags().StringVar(&f.addr, "addr", "", "bind address (host:port)")
	serveCmd.Flags().IntVar(&f.rps, "max-rps", 0, "max requests per second per client (0 = unlimited)")
	serveCmd.Flags().IntVar(&f.perAddr, "max-per-client", 0, "max concurrent requests per client (0 = unlimited)")
	serveCmd.Flags().IntVar(&f.total, "max-total", 0, "max concurrent requests overall (0 = unlimited)")
	serveCmd.Flags().StringVar(&f.sessionsDir, "sessions-dir", "", "sessions directory (default ~/.ada/sessions)")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "", "log format (text, json)")
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags set on the command line override the config file.
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.ListenAddr = f.addr
	}
	if flags.Changed("max-rps") {
		cfg.MaxRequestsPerSecond = f.rps
	}
	if flags.Changed("max-per-client") {
		cfg.MaxConcurrentPerAddr = f.perAddr
	}
	if flags.Changed("max-total") {
		cfg.MaxTotalConcurrent = f.total
	}
	if flags.Changed("sessions-dir") {
		cfg.SessionsDir = f.sessionsDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	log := logging.New(logging.Options{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	sessionsDir := cfg.SessionsDir
	if sessionsDir == "" {
		dir, err := session.DefaultRoot()
		if err != nil {
			return err
		}
		sessionsDir = dir
	}

	srv := rpcserver.New(cfg.ServerConfig(), rpcserver.WithLogger(log))
	queryapi.New(session.NewStore(sessionsDir), Version).RegisterAll(srv.Registry())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting query server",
		"addr", cfg.ListenAddr,
		"max_rps", cfg.MaxRequestsPerSecond,
		"max_per_client", cfg.MaxConcurrentPerAddr,
		"max_total", cfg.MaxTotalConcurrent)
	return srv.Serve(ctx, cfg.ListenAddr)
}
