package main

import (
	"fmt"
	"os"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/cmd"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/logging"
)

func main() {
	settings := conf.Setting()
	if settings == nil {
		fmt.Fprintln(os.Stderr, "error loading configuration")
		os.Exit(1)
	}

	logging.Init(settings.Debug)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
