package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newTokenCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			st, err := openStore(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			svc, err := newAuthService(c.cfg, st)
			if err != nil {
				return err
			}
			tok, err := svc.IssueToken(ctx, username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "user to mint the token for")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
