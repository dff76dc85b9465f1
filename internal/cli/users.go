package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUsersCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Show or edit the known-users list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			printUsers(cmd, s.coord.KnownUsers(cmd.Context()))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [user-id...]",
		Short: "Remember user ids; anything that is not a positive integer is skipped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			var ids []int64
			for _, raw := range args {
				if ids, err = s.users.RememberRaw(cmd.Context(), raw); err != nil {
					return err
				}
			}
			printUsers(cmd, ids)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every known user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd)
			if err != nil {
				return err
			}
			ids, err := s.users.Write(cmd.Context(), nil)
			if err != nil {
				return err
			}
			printUsers(cmd, ids)
			return nil
		},
	})
	return cmd
}

func printUsers(cmd *cobra.Command, ids []int64) {
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No known users.")
		return
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Known users:", strings.Join(parts, ", "))
}
