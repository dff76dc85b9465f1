package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"gozon/storefront/internal/orders"
	"gozon/storefront/internal/subscription"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const watchPoll = 50 * time.Millisecond

func newOrderCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place and inspect orders",
	}

	var (
		amount  string
		desc    string
		watch   bool
		timeout time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Place an order for the current user",
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
			o, err := s.coord.CreateOrder(cmd.Context(), value, desc)
			if err != nil {
				return reported(err)
			}
			if !watch {
				return nil
			}
			return watchOrder(cmd, s, o.OrderID, timeout)
		},
	}
	create.Flags().StringVarP(&amount, "amount", "a", "100", "order amount")
	create.Flags().StringVarP(&desc, "desc", "d", "test", "order description")
	create.Flags().BoolVarP(&watch, "watch", "w", false, "follow the order until its status changes")
	create.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long --watch waits")

	show := &cobra.Command{
		Use:   "show [order-id]",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			o, err := s.orders.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printOrders(cmd, []orders.Order{o})
			return nil
		},
	}

	cmd.AddCommand(create, show)
	return cmd
}

func newOrdersCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Browse order history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			if err := s.coord.LoadOrders(cmd.Context(), true); err != nil {
				return reported(err)
			}
			list := s.coord.Snapshot().Orders
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders.")
				return nil
			}
			printOrders(cmd, list)
			return nil
		},
	})
	return cmd
}

// watchOrder returns once the push channel moves the order off NEW, the
// channel closes, or timeout passes.
func watchOrder(cmd *cobra.Command, s *session, orderID int64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ticker := time.NewTicker(watchPoll)
	defer ticker.Stop()

	for {
		st := s.coord.Snapshot()
		if st.OrderID == orderID && st.Status != orders.StatusNew {
			s.coord.Wait()
			st = s.coord.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "order #%d: %s, balance: %s\n", orderID, st.Status, balanceText(st.Balance))
			return nil
		}
		if st.Channel == subscription.Closed {
			return &reportedError{err: fmt.Errorf("push channel for order #%d closed", orderID)}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("order #%d still %s after %s", orderID, st.Status, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printOrders(cmd *cobra.Command, list []orders.Order) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tAMOUNT\tSTATUS\tDESCRIPTION")
	for _, o := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", o.OrderID, o.UserID, o.Amount, o.Status, o.Description)
	}
	_ = w.Flush()
}

func balanceText(b *decimal.Decimal) string {
	if b == nil {
		return "-"
	}
	return b.String()
}
