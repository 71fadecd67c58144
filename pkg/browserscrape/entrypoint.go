package browserscrape

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hostkit/pkg/fssnapshot"
	"github.com/function61/hostkit/pkg/hostkitconfig"
	"github.com/function61/hostkit/pkg/shadowextract"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const defaultUsersRoot = `C:\Users`

func Entrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Browser history, cookie and credential stores",
	}

	cmd.AddCommand(listEntrypoint())
	cmd.AddCommand(scrapeEntrypoint())

	return cmd
}

func listEntrypoint() *cobra.Command {
	usersRoot := defaultUsersRoot

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists browser artifact files of all users",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			files, err := DefaultProfiles(usersRoot)
			osutil.ExitIfError(err)

			writeFiles(files, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&usersRoot, "users-root", "", usersRoot, "Directory that has the user profiles")

	return cmd
}

func scrapeEntrypoint() *cobra.Command {
	usersRoot := defaultUsersRoot
	pattern := DefaultPattern.String()
	fromSnapshot := false

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Extracts URLs (or another pattern) from browser artifact files",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			compiled, err := regexp.Compile(pattern)
			osutil.ExitIfError(err)

			rootLogger := logex.StandardLogger()

			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			if !fromSnapshot {
				report, err := scrapeUsersRoot(ctx, usersRoot, compiled)
				osutil.ExitIfError(err)

				writeReport(report, os.Stdout)
				return
			}

			volume, relativeUsersRoot, err := splitVolume(usersRoot)
			osutil.ExitIfError(err)

			conf, err := hostkitconfig.Read()
			osutil.ExitIfError(err)

			orchestrator, _ := shadowextract.NewForHost(conf.ProviderService, conf.SettleDelay(), false, rootLogger)

			var report *Report
			res := orchestrator.WithSnapshot(ctx, volume, func(ctx context.Context, root string) error {
				var err error
				report, err = scrapeUsersRoot(ctx, fssnapshot.JoinUnderRoot(root, relativeUsersRoot), compiled)
				return err
			})

			for _, warning := range res.Warnings {
				logex.Levels(rootLogger).Error.Println(warning.String())
			}

			osutil.ExitIfError(res.Failure())

			writeReport(report, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&usersRoot, "users-root", "", usersRoot, "Directory that has the user profiles")
	cmd.Flags().StringVarP(&pattern, "pattern", "", pattern, "Regular expression to extract")
	cmd.Flags().BoolVarP(&fromSnapshot, "from-snapshot", "", fromSnapshot, "Read from a volume snapshot, so files locked by running browsers can be read")

	return cmd
}

func scrapeUsersRoot(ctx context.Context, usersRoot string, pattern *regexp.Regexp) (*Report, error) {
	files, err := DefaultProfiles(usersRoot)
	if err != nil {
		return nil, err
	}

	return Scrape(ctx, files, pattern)
}

// `C:\Users` => "C:", "Users"
func splitVolume(fullPath string) (string, string, error) {
	if len(fullPath) < 2 || fullPath[1] != ':' {
		return "", "", fmt.Errorf("--from-snapshot needs a path with a drive letter; got %s", fullPath)
	}

	volume, err := fssnapshot.NormalizeVolume(fullPath[0:2])
	if err != nil {
		return "", "", err
	}

	return volume, strings.ReplaceAll(strings.Trim(fullPath[2:], `\/`), `\`, "/"), nil
}

func writeFiles(files []ArtifactFile, out io.Writer) {
	tbl := tablewriter.NewWriter(out)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetAutoWrapText(false)
	tbl.SetHeader([]string{"User", "Browser", "Profile", "Kind", "Modified", "Path"})

	for _, file := range files {
		modified := ""
		if !file.Modified.IsZero() {
			modified = file.Modified.Format("2006-01-02 15:04")
		}

		tbl.Append([]string{file.User, string(file.Browser), file.Profile, string(file.Kind), modified, file.Path})
	}

	tbl.Render()
}

func writeReport(report *Report, out io.Writer) {
	tbl := tablewriter.NewWriter(out)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetAutoWrapText(false)
	tbl.SetHeader([]string{"User", "Browser", "Kind", "Value"})

	for _, match := range report.Matches {
		tbl.Append([]string{match.User, string(match.Browser), string(match.Kind), match.Value})
	}

	tbl.Render()

	fmt.Fprintf(out, "\n%d matches from %d files\n", len(report.Matches), report.Scanned)

	for _, unreadable := range report.Unreadable {
		fmt.Fprintf(out, "unreadable: %s: %v\n", unreadable.File.Path, unreadable.Err)
	}
}
