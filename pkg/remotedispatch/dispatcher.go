// Runs a hostkit command on another host over SSH and streams its output back
package remotedispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/hostkit/pkg/logtee"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultPort   = 22
	DefaultBinary = "hostkit"
	// so the password doesn't need to be in argv (and thus in process listings)
	PasswordEnvVar = "HOSTKIT_REMOTE_PASSWORD"

	handshakeTimeout = 30 * time.Second
)

var (
	ErrNoCredentials = errors.New("no credentials: give password or private key")
)

type Target struct {
	Host                  string
	Port                  int
	Username              string
	Password              string
	PrivateKeyFile        string
	Binary                string // hostkit on the remote host, looked up from its PATH if not absolute
	KnownHostsFile        string // defaults to ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool
}

func (t Target) address() string {
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}

	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// remote command finished with a non-zero exit status
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Status)
}

type Dispatcher interface {
	// runs hostkit with args on the remote end. output is forwarded line by line.
	Dispatch(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error
}

type SSHDispatcher struct {
	target Target
	config *ssh.ClientConfig
	log    *logex.Leveled
}

var _ Dispatcher = (*SSHDispatcher)(nil)

func NewSSHDispatcher(target Target, logger *log.Logger) (*SSHDispatcher, error) {
	auth, err := authMethods(target)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(target)
	if err != nil {
		return nil, err
	}

	return &SSHDispatcher{
		target: target,
		config: &ssh.ClientConfig{
			User:            target.Username,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
		},
		log: logex.Levels(logex.NonNil(logger)),
	}, nil
}

func (s *SSHDispatcher) Dispatch(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	stdoutLines := lineForwarder(stdout)
	stderrLines := lineForwarder(stderr)
	session.Stdout = stdoutLines
	session.Stderr = stderrLines

	command := commandLine(s.binary(), args)

	s.log.Info.Printf("%s: %s", s.target.address(), command)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// closing the connection makes the remote end see a hangup
		client.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		stdoutLines.Flush()
		stderrLines.Flush()

		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Status: exitErr.ExitStatus()}
		}

		return err
	}
}

func (s *SSHDispatcher) connect(ctx context.Context) (*ssh.Client, error) {
	addr := s.target.address()

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		conn.Close()
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, s.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh %s: %w", addr, err)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, err
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (s *SSHDispatcher) binary() string {
	if s.target.Binary == "" {
		return DefaultBinary
	}

	return s.target.Binary
}

func authMethods(target Target) ([]ssh.AuthMethod, error) {
	methods := []ssh.AuthMethod{}

	if target.PrivateKeyFile != "" {
		keyPem, err := os.ReadFile(target.PrivateKeyFile)
		if err != nil {
			return nil, err
		}

		signer, err := ssh.ParsePrivateKey(keyPem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target.PrivateKeyFile, err)
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	if target.Password != "" {
		methods = append(methods, ssh.Password(target.Password))
	}

	if len(methods) == 0 {
		return nil, ErrNoCredentials
	}

	return methods, nil
}

func hostKeyCallback(target Target) (ssh.HostKeyCallback, error) {
	if target.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	knownHostsFile := target.KnownHostsFile
	if knownHostsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		knownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	callback, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("known hosts: %w", err)
	}

	return callback, nil
}

func lineForwarder(sink io.Writer) *logtee.LineSplitter {
	return logtee.NewLineSplitter(func(line string) {
		fmt.Fprintln(sink, line)
	})
}

// the remote end is typically Windows OpenSSH with cmd.exe as the shell
func commandLine(binary string, args []string) string {
	quoted := make([]string, 0, len(args)+1)
	for _, arg := range append([]string{binary}, args...) {
		quoted = append(quoted, quoteArg(arg))
	}

	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"&|<>^") {
		return arg
	}

	return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
}
