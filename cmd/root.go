package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/cmd/check"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/cmd/serve"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "addressfinder",
		Short: "Pittsburgh code violation monitor CLI",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		check.Command(settings),
		serve.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
}
