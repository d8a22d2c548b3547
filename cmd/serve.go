package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/biogate/internal/config"
	"github.com/kozaktomas/biogate/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the biogate web server.
The server hosts the login pages, the user-select list and the login attempt
API used by the browser to upload the camera frame and the voice clip.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies")
	serveCmd.Flags().Bool("require-speech", false, "Make the spoken phrase part of the login decision")
}

// applyServeFlags overrides the environment configuration with explicit flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}
	if mustGetBool(cmd, "require-speech") {
		cfg.Speech.Require = true
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if n, err := b.service.WarmGallery(ctx); err != nil {
		b.log.Warn("failed to warm face gallery", "error", err)
	} else if n > 0 {
		b.log.Info("face gallery ready", "descriptors", n)
	}

	if cfg.Web.SessionSecret == "" {
		b.log.Warn("WEB_SESSION_SECRET is not set, using the development secret")
	}

	server := web.NewServer(cfg, web.Dependencies{
		Login:       b.service,
		Accounts:    b.accounts,
		Transcriber: b.transcriber,
		Sessions:    b.sessions,
		Logger:      b.log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		b.service.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting biogate on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
