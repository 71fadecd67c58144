package remotedispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const remoteFlagPrefix = "remote-"

// swapped in tests
var (
	newDispatcher = func(target Target, logger *log.Logger) (Dispatcher, error) {
		return NewSSHDispatcher(target, logger)
	}
	exit = os.Exit
)

// Wrap adds --remote-* flags to cmd and every runnable command under it. when
// --remote-host is given, the local implementation is skipped and the same command line
// (without the remote flags) runs on that host instead, with its exit status passed on.
func Wrap(cmd *cobra.Command) *cobra.Command {
	for _, sub := range cmd.Commands() {
		Wrap(sub)
	}

	if cmd.Run == nil {
		return cmd
	}

	target := Target{}
	cmd.Flags().StringVarP(&target.Host, remoteFlagPrefix+"host", "", "", "Run on this host (over SSH) instead of locally")
	cmd.Flags().IntVarP(&target.Port, remoteFlagPrefix+"port", "", DefaultPort, "SSH port of the remote host")
	cmd.Flags().StringVarP(&target.Username, remoteFlagPrefix+"user", "", "Administrator", "Username on the remote host")
	cmd.Flags().StringVarP(&target.Password, remoteFlagPrefix+"password", "", "", "Password (prefer the "+PasswordEnvVar+" environment variable)")
	cmd.Flags().StringVarP(&target.PrivateKeyFile, remoteFlagPrefix+"key", "", "", "Private key file")
	cmd.Flags().StringVarP(&target.Binary, remoteFlagPrefix+"binary", "", DefaultBinary, "hostkit on the remote host")
	cmd.Flags().StringVarP(&target.KnownHostsFile, remoteFlagPrefix+"known-hosts", "", "", "known_hosts file (default ~/.ssh/known_hosts)")
	cmd.Flags().BoolVarP(&target.InsecureIgnoreHostKey, remoteFlagPrefix+"insecure-ignore-host-key", "", false, "Don't verify the remote host's key")

	localRun := cmd.Run

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if target.Host == "" {
			localRun(cmd, args)
			return
		}

		if target.Password == "" {
			target.Password = os.Getenv(PasswordEnvVar)
		}

		logger := logex.StandardLogger()

		err := dispatch(
			osutil.CancelOnInterruptOrTerminate(logger),
			target,
			ForwardedArgs(cmd, args),
			cmd.OutOrStdout(),
			cmd.ErrOrStderr(),
			logex.Prefix("remotedispatch", logger))

		var exitErr *ExitError
		switch {
		case err == nil:
			return
		case errors.As(err, &exitErr):
			exit(exitErr.Status)
		default:
			fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
			exit(1)
		}
	}

	return cmd
}

func dispatch(
	ctx context.Context,
	target Target,
	args []string,
	stdout io.Writer,
	stderr io.Writer,
	logger *log.Logger,
) error {
	dispatcher, err := newDispatcher(target, logger)
	if err != nil {
		return err
	}

	return dispatcher.Dispatch(ctx, args, stdout, stderr)
}

// command path (without the binary name), explicitly given flags except --remote-* ones,
// then positional args
func ForwardedArgs(cmd *cobra.Command, args []string) []string {
	forwarded := strings.Fields(cmd.CommandPath())[1:]

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		if strings.HasPrefix(flag.Name, remoteFlagPrefix) {
			return
		}

		forwarded = append(forwarded, "--"+flag.Name+"="+flag.Value.String())
	})

	return append(forwarded, args...)
}
