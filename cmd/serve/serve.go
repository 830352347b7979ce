package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/checker"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/httpcontroller"
)

// Command creates the command that serves the HTTP API.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the violation check HTTP API",
		Long:  "Start an HTTP server exposing the check trigger and health endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.WebServer.Port, "port", viper.GetInt("webserver.port"), "HTTP listen port")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runServe(settings *conf.Settings) error {
	runner, cleanup, err := checker.NewRunner(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
		}
	}()

	server := httpcontroller.New(settings, runner)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		fmt.Printf("received %s, shutting down\n", sig)
		return server.Shutdown()
	}
}
