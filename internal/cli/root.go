// Package cli wires the portal building blocks into a cobra command tree.
package cli

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seva-trust/donorportal/api"
	"github.com/seva-trust/donorportal/internal/config"
	"github.com/seva-trust/donorportal/payment"
	"github.com/seva-trust/donorportal/payment/gateway"
	"github.com/seva-trust/donorportal/session"
	"github.com/seva-trust/donorportal/session/credentials"
	"github.com/seva-trust/donorportal/session/profilecache"
	"github.com/seva-trust/donorportal/users"
)

const displayName = "Seva Trust"

// app holds the wired portal components shared by all subcommands.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	session *session.Session
	flow    *payment.Flow
}

// NewRootCmd builds the portal command tree. Components are wired in the
// persistent pre-run so `portal --help` works without configuration.
func NewRootCmd() *cobra.Command {
	var flagLogLevel string
	a := &app{}

	root := &cobra.Command{
		Use:          "portal",
		Short:        "Donor and membership portal client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Runnable() || cmd.Name() == "help" {
				return nil
			}
			return a.init(flagLogLevel)
		},
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides PORTAL_LOG_LEVEL")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRegisterCmd(a),
		newDonateCmd(a),
		newRecordCmd(a),
	)
	return root
}

func (a *app) init(levelOverride string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()

	creds, err := credentials.NewFileStore(cfg.Cache.Dir)
	if err != nil {
		return err
	}
	cache, err := profilecache.NewFileCache(cfg.Cache.Dir)
	if err != nil {
		return err
	}
	client, err := api.New(cfg.API.BaseURL, nil, creds,
		api.WithLogger(a.log),
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
	)
	if err != nil {
		return err
	}
	a.session, err = session.New(client, creds, cache,
		session.WithLogger(a.log),
		session.WithRenewalInterval(cfg.Session.RenewalInterval),
	)
	if err != nil {
		return err
	}

	gw := gateway.NewHostedCheckout(gateway.Options{
		KeyID:      cfg.Gateway.KeyID,
		ScriptURL:  cfg.Gateway.ScriptURL,
		MaxAge:     cfg.Gateway.CheckoutTimeout,
		RetryCount: cfg.Gateway.RetryCount,
		ThemeColor: cfg.Gateway.ThemeColor,
	}, gateway.WithLogger(a.log), gateway.WithDisplayName(displayName))

	a.flow = payment.New(client, gw,
		payment.WithLogger(a.log),
		payment.WithCurrency(cfg.Gateway.Currency),
		payment.WithProfileSource(func() *users.User { return a.session.Snapshot().User }),
	)
	return nil
}
