package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ad1th/Poster-Website/pkg/auth"
	"github.com/spf13/cobra"
)

func newLoginCommand(cc *commandContext) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as admin; the secret is read from stdin unless --secret is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cc.dependencies()
			if err != nil {
				return err
			}
			if secret == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Admin password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			session, err := deps.Sessions.Login(secret)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidSecret) {
					return &failure{cause: err, message: "Invalid password!"}
				}
				return cc.fail(cmd.Context(), err)
			}
			if err := deps.Mirror.SaveSession(session); err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in until %s\n", session.ExpiresAt.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Admin password")
	return cmd
}

func newLogoutCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cc.dependencies()
			if err != nil {
				return err
			}
			if err := deps.Mirror.ClearSession(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
