package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/access"
	"github.com/spec-kit/logistics-dashboard/internal/apiclient"
	"github.com/spec-kit/logistics-dashboard/internal/session"
)

func newLoginCmd(c *cli) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("DASHCTL_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("--username and --password (or DASHCTL_PASSWORD) are required")
			}

			client, _, err := c.api()
			if err != nil {
				return err
			}
			res, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := c.store.Store(session.LocalRecord{Session: res.Session, Token: res.Auth.Token}); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			c.logger.Debug("signed in", zap.String("session_id", res.Session.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s). Home: %s\n",
				res.Session.Username, res.Session.Role, access.DefaultRoute(res.Session.Role))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, rec, err := c.api()
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}

			// an expired server session still clears the local one
			if err := client.Logout(cmd.Context()); err != nil {
				var apiErr *apiclient.APIError
				if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
					return err
				}
			}
			if err := c.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, rec, err := c.authedAPI()
			if err != nil {
				return err
			}
			s := &rec.Session
			if remote {
				if s, err = client.Session(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) session %s\n", s.Username, s.Role, s.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the server instead of reading the local session")
	return cmd
}
