package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"weighttracker/internal/app"
)

// Test seams.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

func (c *cli) newUserAddCmd() *cobra.Command {
	var (
		in     app.RegisterInput
		height float64
		age    int
	)
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user",
		Long: `Create a user with a password login. The password is prompted for
when stdin is a terminal, otherwise the first line of stdin is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("height") {
				in.Height = &height
			}
			if cmd.Flags().Changed("age") {
				in.Age = &age
			}
			pw, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			in.Password = pw

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
			u, err := svc.Register(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().Float64Var(&height, "height", 0, "height in centimetres")
	cmd.Flags().IntVar(&age, "age", 0, "age in years")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func promptPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
