package check

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/checker"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
)

// Command creates the command that runs one violation check and exits.
func Command(settings *conf.Settings) *cobra.Command {
	var opts checker.Options

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one violation check",
		Long:  "Fetch violation records for all watched parcels, persist the new ones and send notifications.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), settings, opts)
		},
	}

	if err := setupFlags(cmd, &opts); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, opts *checker.Options) error {
	cmd.Flags().BoolVar(&opts.FullSync, "full-sync", false, "Fetch the full history instead of records after the latest known date")
	cmd.Flags().BoolVar(&opts.SkipEmail, "skip-email", false, "Persist new records without sending the email report")
	cmd.Flags().BoolVar(&opts.TestRun, "test-run", false, "Send a test notification without touching upstream or the database")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runCheck(ctx context.Context, settings *conf.Settings, opts checker.Options) error {
	runner, cleanup, err := checker.NewRunner(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
		}
	}()

	result, err := runner.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, checker.ErrCheckDisabled) {
			fmt.Println("violation checks are disabled")
			return nil
		}
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
