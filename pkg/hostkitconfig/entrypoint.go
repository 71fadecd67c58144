package hostkitconfig

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/osutil"
	"github.com/spf13/cobra"
)

func Entrypoints() []*cobra.Command {
	return []*cobra.Command{
		configInitEntrypoint(),
		configPrintEntrypoint(),
	}
}

func configInitEntrypoint() *cobra.Command {
	conf := Defaults()

	cmd := &cobra.Command{
		Use:   "config-init",
		Short: "Write a config file with defaults for the shadow commands",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			confPath, err := FilePath()
			osutil.ExitIfError(err)

			exists, err := fileexists.Exists(confPath)
			osutil.ExitIfError(err)

			if exists {
				osutil.ExitIfError(errors.New("config file already exists"))
			}

			osutil.ExitIfError(WriteTo(conf, confPath))

			fmt.Printf("wrote %s\n", confPath)
		},
	}

	cmd.Flags().StringVarP(&conf.DefaultVolume, "volume", "", conf.DefaultVolume, "Default volume to snapshot")
	cmd.Flags().StringVarP(&conf.DefaultDestination, "dest", "", conf.DefaultDestination, "Default destination directory")
	cmd.Flags().StringVarP(&conf.ProviderService, "service", "", conf.ProviderService, "Snapshot provider service name")
	cmd.Flags().StringVarP(&conf.MetricsTextfile, "metrics-textfile", "", conf.MetricsTextfile, "Write run metrics to this file (node_exporter textfile format)")

	return cmd
}

func configPrintEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "config-print",
		Short: "Prints path to config file & its contents",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			confPath, err := FilePath()
			osutil.ExitIfError(err)

			fmt.Printf("file: %s\n", confPath)

			exists, err := fileexists.Exists(confPath)
			osutil.ExitIfError(err)

			if !exists {
				fmt.Printf(".. does not exist (defaults apply). To configure, run:\n    $ %s config-init\n", os.Args[0])
				return
			}

			file, err := os.Open(confPath)
			osutil.ExitIfError(err)
			defer file.Close()

			_, err = io.Copy(os.Stdout, file)
			osutil.ExitIfError(err)
		},
	}
}
