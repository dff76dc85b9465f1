package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newAccountCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the current user's payment account",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create the account, or show its balance if it already exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			return reported(s.coord.CreateAccount(cmd.Context()))
		},
	}

	var amount string
	topup := &cobra.Command{
		Use:   "topup",
		Short: "Add funds to the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			return reported(s.coord.TopUp(cmd.Context(), value))
		},
	}
	topup.Flags().StringVarP(&amount, "amount", "a", "1000", "amount to add")

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			return reported(s.coord.RefreshBalance(cmd.Context(), true))
		},
	}

	cmd.AddCommand(create, topup, balance)
	return cmd
}

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Browse all payment accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every account with its balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			if err := s.coord.LoadAccounts(cmd.Context(), true); err != nil {
				return reported(err)
			}
			printAccounts(cmd, s)
			return nil
		},
	})
	return cmd
}

func printAccounts(cmd *cobra.Command, s *session) {
	accounts := s.coord.Snapshot().Accounts
	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts.")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tBALANCE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%d\t%s\n", a.UserID, a.Balance)
	}
	_ = w.Flush()
}
