package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/config"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/lsp"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/preview"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/server"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/tool"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort int
	serveHost string
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for the workspace in --directory.

Agents connect with GET /sse and post messages to /message. If the
preferred port is taken an OS-assigned port is used; the bound port is
printed on stdout.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Preferred port (default from config, 8008)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (default from config, 127.0.0.1)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Workspace directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, appConfig); err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(appConfig.LogLevel)
	logCfg.Pretty = pretty
	logging.Init(logCfg)

	logging.Info().
		Str("version", Version).
		Str("directory", workDir).
		Msg("starting bifrost")

	lspClient := lsp.NewClient(workDir, appConfig.LSP)
	defer lspClient.Close()

	watch := appConfig.Watcher == nil || !appConfig.Watcher.Disabled
	previews, err := preview.NewReader(appConfig.PreviewCacheSize, watch)
	if err != nil {
		return fmt.Errorf("create preview reader: %w", err)
	}
	defer previews.Close()

	registry := tool.DefaultRegistry(lspClient, previews,
		tool.WithProviderTimeout(appConfig.ProviderTimeout.Std()))

	serverConfig := server.DefaultConfig()
	serverConfig.Host = appConfig.Host
	serverConfig.EnableCORS = appConfig.CORSEnabled()
	serverConfig.HeartbeatInterval = appConfig.HeartbeatInterval.Std()
	serverConfig.Version = Version
	serverConfig.MaxPending = appConfig.MaxPendingMessages
	serverConfig.LanguageServers = lspClient.Status

	manager := server.NewManager(serverConfig, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inst, err := manager.Start(ctx, appConfig.Port)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "bifrost listening on %s/sse (port %d)\n", inst.URL(), inst.Port)

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown error")
		return err
	}
	return nil
}

// applyFlags lets explicitly set flags override every config source.
func applyFlags(cmd *cobra.Command, cfg *types.Config) error {
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = serveHost
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	return nil
}
