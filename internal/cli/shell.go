package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  user <id>               switch the current user
  create                  create account (or show balance if it exists)
  topup <amount>          add funds
  balance                 show balance
  order <amount> [desc]   place an order and follow its status
  orders                  list orders
  accounts                list accounts
  users                   list known users
  state                   show the current view state
  help                    this text
  quit                    leave`

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session that keeps the push channel open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			return runShell(cmd, s, cmd.InOrStdin())
		},
	}
}

func runShell(cmd *cobra.Command, s *session, in io.Reader) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "orders-console: user %d, gateway %s (type help)\n", s.coord.UserID(), s.cfg.APIBase)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := shellCommand(cmd, s, fields); err != nil {
			s.logger.Debug("shell command failed", "command", fields[0], "err", err)
		}
		if cmd.Context().Err() != nil {
			return nil
		}
	}
}

// shellCommand runs one line. Remote failures have already been printed as
// notifications, so only local input errors are echoed here.
func shellCommand(cmd *cobra.Command, s *session, fields []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	args := fields[1:]

	switch fields[0] {
	case "help":
		fmt.Fprintln(out, shellHelp)
	case "user":
		if len(args) != 1 {
			return usage(out, "user <id>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return usage(out, "user <id>")
		}
		s.coord.SetUser(id)
		fmt.Fprintf(out, "user %d\n", id)
	case "create":
		return s.coord.CreateAccount(ctx)
	case "topup":
		amount, err := amountArg(args)
		if err != nil {
			return usage(out, "topup <amount>")
		}
		return s.coord.TopUp(ctx, amount)
	case "balance":
		return s.coord.RefreshBalance(ctx, true)
	case "order":
		amount, err := amountArg(args)
		if err != nil {
			return usage(out, "order <amount> [desc]")
		}
		if !s.coord.CanCreateOrder(amount) {
			fmt.Fprintln(out, "order disabled: user id and amount must be positive")
			return nil
		}
		_, err = s.coord.CreateOrder(ctx, amount, strings.Join(args[1:], " "))
		return err
	case "orders":
		if err := s.coord.LoadOrders(ctx, true); err != nil {
			return err
		}
		printOrders(cmd, s.coord.Snapshot().Orders)
	case "accounts":
		if err := s.coord.LoadAccounts(ctx, true); err != nil {
			return err
		}
		printAccounts(cmd, s)
	case "users":
		printUsers(cmd, s.coord.KnownUsers(ctx))
	case "state":
		st := s.coord.Snapshot()
		fmt.Fprintf(out, "user %d  balance %s  order %s  status %s  channel %s\n",
			st.UserID, balanceText(st.Balance), orderText(st.OrderID), st.Status, st.Channel)
	default:
		return usage(out, "help")
	}
	return nil
}

func amountArg(args []string) (decimal.Decimal, error) {
	if len(args) == 0 {
		return decimal.Zero, fmt.Errorf("missing amount")
	}
	return decimal.NewFromString(args[0])
}

func orderText(id int64) string {
	if id == 0 {
		return "-"
	}
	return "#" + strconv.FormatInt(id, 10)
}

func usage(out io.Writer, text string) error {
	fmt.Fprintln(out, "usage:", text)
	return fmt.Errorf("usage: %s", text)
}
