// Package cli is the orders-console command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"gozon/storefront/internal/config"
	"gozon/storefront/internal/console"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	userID     int64
	verbose    bool

	sess *session
}

// session opens the coordinator on first use so that help and completion
// never touch config or storage.
func (o *rootOptions) session(cmd *cobra.Command) (*session, error) {
	if o.sess != nil {
		return o.sess, nil
	}
	cfg, err := config.LoadConsole(o.configPath)
	if err != nil {
		return nil, err
	}
	// Push notices arrive on other goroutines; route every write to stdout
	// through one lock.
	out := &syncWriter{w: cmd.OutOrStdout()}
	cmd.Root().SetOut(out)
	sess, err := openSession(cmd.Context(), cfg, o.userID, out, cmd.ErrOrStderr(), o.verbose)
	if err != nil {
		return nil, err
	}
	o.sess = sess
	return sess, nil
}

func (o *rootOptions) close() {
	if o.sess != nil {
		o.sess.Close()
		o.sess = nil
	}
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "orders-console",
		Short: "Storefront console for accounts, orders and live order status",
		Long: `orders-console talks to the storefront gateway: it creates and tops up
payment accounts, places orders and follows their status over the push
channel until payment settles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().Int64VarP(&opts.userID, "user", "u", 1, "user id to act as")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(newAccountCommand(opts))
	root.AddCommand(newAccountsCommand(opts))
	root.AddCommand(newOrderCommand(opts))
	root.AddCommand(newOrdersCommand(opts))
	root.AddCommand(newUsersCommand(opts))
	root.AddCommand(newShellCommand(opts))
	return root
}

// Execute runs the command tree until it finishes or the process is signalled.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := &rootOptions{}
	defer opts.close()

	root := newRootCommand(opts)
	root.Version = version
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.As(err, new(*reportedError)) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

// reportedError marks failures the coordinator already surfaced as a
// notification.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil || errors.Is(err, console.ErrOrderDisabled) {
		return err
	}
	return &reportedError{err: err}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
