package main

import (
	"fmt"
	"os"

	"github.com/function61/gokit/dynversion"
	"github.com/function61/hostkit/pkg/browserscrape"
	"github.com/function61/hostkit/pkg/hostkitconfig"
	"github.com/function61/hostkit/pkg/loadgen"
	"github.com/function61/hostkit/pkg/remotedispatch"
	"github.com/function61/hostkit/pkg/shadowextract"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Administrative utilities for Windows hosts",
		Version: dynversion.Version,
	}

	// each of these can also run on another host with --remote-host
	for _, entrypoint := range []*cobra.Command{
		shadowextract.Entrypoint(),
		browserscrape.Entrypoint(),
		loadgen.Entrypoint(),
	} {
		rootCmd.AddCommand(remotedispatch.Wrap(entrypoint))
	}

	for _, entrypoint := range hostkitconfig.Entrypoints() {
		rootCmd.AddCommand(entrypoint)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
