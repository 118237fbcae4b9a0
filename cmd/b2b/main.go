package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bid2build/bid2build/internal/client"
	"github.com/bid2build/bid2build/internal/session"
)

const (
	keyAPI     = "api"
	keySession = "session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "b2b",
		Short:         "Bid2Build account client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	v.SetEnvPrefix("B2B")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(keyAPI, "http://localhost:5000")
	_ = v.BindEnv(keyAPI, "B2B_API_URL")

	root.PersistentFlags().String(keyAPI, "", "API base URL (env B2B_API_URL)")
	root.PersistentFlags().String(keySession, "", "session file (env B2B_SESSION)")
	_ = v.BindPFlag(keyAPI, root.PersistentFlags().Lookup(keyAPI))
	_ = v.BindPFlag(keySession, root.PersistentFlags().Lookup(keySession))

	app := &cliApp{v: v}
	root.AddCommand(
		newRegisterCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
	)
	return root
}

// cliApp resolves configuration lazily so flags are parsed first.
type cliApp struct {
	v      *viper.Viper
	client *client.Client
	store  session.Store
}

func (a *cliApp) api() *client.Client {
	if a.client == nil {
		a.client = client.New(a.v.GetString(keyAPI))
	}
	return a.client
}

func (a *cliApp) sessions() (session.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	path := a.v.GetString(keySession)
	if path == "" {
		def, err := session.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("locate session file: %w", err)
		}
		path = def
	}
	a.store = session.NewFileStore(path)
	return a.store, nil
}
