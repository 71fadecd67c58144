package shadowextract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hostkit/pkg/fssnapshot"
	"github.com/function61/hostkit/pkg/hiveextract"
	"github.com/function61/hostkit/pkg/hostkitconfig"
	"github.com/function61/hostkit/pkg/logtee"
	"github.com/function61/hostkit/pkg/servicestate"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shadow",
		Short: "Read OS-locked files through a temporary volume snapshot",
	}

	cmd.AddCommand(extractEntrypoint())

	includeSecurityHive := false

	listTargets := &cobra.Command{
		Use:   "list-targets",
		Short: "Lists the files that extract would copy",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tbl := tablewriter.NewWriter(os.Stdout)
			tbl.SetAutoFormatHeaders(false)
			tbl.SetBorder(false)
			tbl.SetAutoWrapText(false)
			tbl.SetHeader([]string{"Name", "Path on volume", "Optional"})

			for _, target := range hiveextract.DefaultTargets(includeSecurityHive) {
				optional := ""
				if target.Conditional {
					optional = "yes"
				}

				tbl.Append([]string{
					target.Name,
					strings.ReplaceAll(target.RelativePath, "/", `\`),
					optional,
				})
			}

			tbl.Render()
		},
	}

	listTargets.Flags().BoolVarP(&includeSecurityHive, "include-security", "", includeSecurityHive, "Include the SECURITY hive")

	cmd.AddCommand(listTargets)

	return cmd
}

type extractOptions struct {
	volume              string
	destination         string
	noSnapshot          bool
	includeSecurityHive bool
	settleDelay         time.Duration
	metricsTextfile     string
}

func extractEntrypoint() *cobra.Command {
	opts := extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Copies registry hives (and the directory service database, if present) out of a snapshot",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := hostkitconfig.Read()
			osutil.ExitIfError(err)

			opts = opts.withDefaultsFrom(conf, cmd)

			logTail := logtee.NewStringTail(20)

			rootLogger := logex.StandardLoggerTo(logtee.NewLineSplitterTee(os.Stderr, logTail.Write))

			res, err := extract(
				osutil.CancelOnInterruptOrTerminate(rootLogger),
				opts,
				conf.ProviderService,
				rootLogger)
			osutil.ExitIfError(err)

			WriteSummary(res, os.Stdout)

			if res.State == StateFailed {
				fmt.Println("\nlast log lines:")
				for _, line := range logTail.Snapshot() {
					fmt.Println("    " + line)
				}
			}

			os.Exit(res.ExitCode())
		},
	}

	cmd.Flags().StringVarP(&opts.volume, "volume", "", "", "Volume to snapshot (default from config, else C:)")
	cmd.Flags().StringVarP(&opts.destination, "dest", "", "", "Destination directory for the copies")
	cmd.Flags().BoolVarP(&opts.noSnapshot, "no-snapshot", "", false, "Read the live volume instead (locked files will fail)")
	cmd.Flags().BoolVarP(&opts.includeSecurityHive, "include-security", "", false, "Also copy the SECURITY hive")
	cmd.Flags().DurationVarP(&opts.settleDelay, "settle-delay", "", servicestate.DefaultSettleDelay, "Wait after starting the snapshot service")
	cmd.Flags().StringVarP(&opts.metricsTextfile, "metrics-textfile", "", "", "Write run metrics to this file (node_exporter textfile format)")

	return cmd
}

// flags given explicitly win over config file values
func (e extractOptions) withDefaultsFrom(conf hostkitconfig.Config, cmd *cobra.Command) extractOptions {
	if e.volume == "" {
		e.volume = conf.DefaultVolume
	}
	if e.destination == "" {
		e.destination = conf.DefaultDestination
	}
	if !cmd.Flags().Changed("settle-delay") {
		e.settleDelay = conf.SettleDelay()
	}
	if e.metricsTextfile == "" {
		e.metricsTextfile = conf.MetricsTextfile
	}

	return e
}

func extract(ctx context.Context, opts extractOptions, serviceName string, logger *log.Logger) (*RunResult, error) {
	if opts.destination == "" {
		return nil, errors.New("no destination: use --dest or set default_destination with config-init")
	}

	orchestrator, metrics := NewForHost(serviceName, opts.settleDelay, opts.noSnapshot, logger)

	res := orchestrator.Run(ctx, Request{
		Volume:      opts.volume,
		Destination: opts.destination,
		Targets:     hiveextract.DefaultTargets(opts.includeSecurityHive),
	})

	if opts.metricsTextfile != "" {
		if err := metrics.WriteTextfile(opts.metricsTextfile); err != nil {
			logex.Levels(logger).Error.Printf("writing metrics: %v", err)
		}
	}

	return res, nil
}

// orchestrator wired to this host's service manager and snapshot provider
func NewForHost(serviceName string, settleDelay time.Duration, noSnapshot bool, logger *log.Logger) (*Orchestrator, *Metrics) {
	provider := fssnapshot.VssProvider(logex.Prefix("fssnapshot", logger), fssnapshot.ExecRunner)
	if noSnapshot {
		provider = fssnapshot.NullProvider()
	}

	metrics := NewMetrics()

	return New(
		servicestate.NewGuard(
			servicestate.PlatformControl(),
			serviceName,
			settleDelay,
			logex.Prefix("servicestate", logger)),
		provider,
		hiveextract.New(logex.Prefix("hiveextract", logger)),
		metrics,
		logex.Prefix("shadowextract", logger)), metrics
}
