package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/client"
	"github.com/bid2build/bid2build/internal/session"
)

func newLoginCmd(app *cliApp) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			var err error
			if email == "" {
				if email, err = p.ask("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.askSecret("Password", false); err != nil {
					return err
				}
			}

			resp, err := app.api().Login(cmd.Context(), email, password)
			if err != nil {
				return describe(err)
			}
			store, err := app.sessions()
			if err != nil {
				return err
			}
			if err := store.Set(&session.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s, %s)\n", resp.User.Email, resp.User.Role, resp.User.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.sessions()
			if err != nil {
				return err
			}
			current, err := store.Get()
			if errors.Is(err, session.ErrNoSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err != nil {
				return err
			}
			if err := app.api().Logout(cmd.Context(), current.Token); err != nil {
				var respErr *client.ResponseError
				if !errors.As(err, &respErr) {
					return describe(err)
				}
				// the server already rejects the token; clearing locally is enough
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.sessions()
			if err != nil {
				return err
			}
			current, err := store.Get()
			if errors.Is(err, session.ErrNoSession) {
				return errors.New("not signed in; run b2b login")
			}
			if err != nil {
				return err
			}
			if current.Expired(time.Now()) {
				_ = store.Clear()
				return errors.New("session expired; run b2b login")
			}

			me, err := app.api().Me(cmd.Context(), current.Token)
			if err != nil {
				return describe(err)
			}
			printAccount(cmd, me)
			return nil
		},
	}
}

func printAccount(cmd *cobra.Command, me *dto.MeResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s <%s>\n", me.User.FirstName, me.User.LastName, me.User.Email)
	fmt.Fprintf(out, "role: %s  status: %s\n", me.User.Role, me.User.Status)
	keys := make([]string, 0, len(me.Profile))
	for key := range me.Profile {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s: %s\n", key, me.Profile[key])
	}
	for _, doc := range me.Documents {
		fmt.Fprintf(out, "  document %s (%s): %s\n", doc.Kind, doc.FileName, doc.Status)
	}
}

// describe turns client errors into what a terminal user should read.
func describe(err error) error {
	var respErr *client.ResponseError
	if errors.As(err, &respErr) {
		if lines := respErr.Lines(); len(lines) > 0 {
			return errors.New(strings.Join(lines, "\n"))
		}
		if respErr.Message != "" {
			return errors.New(respErr.Message)
		}
	}
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) {
		return fmt.Errorf("network error: %w", transportErr.Err)
	}
	return err
}
