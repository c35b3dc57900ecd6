package main

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/apiclient"
	"github.com/spec-kit/logistics-dashboard/internal/config"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
	"github.com/spec-kit/logistics-dashboard/internal/session"
)

var errNotSignedIn = errors.New("not signed in; run dashctl login first")

// cli carries state shared by every subcommand.
type cli struct {
	cfg    config.ClientConfig
	store  *session.FileStore
	logger *zap.Logger
}

func newRootCmd(cfg config.ClientConfig) *cobra.Command {
	c := &cli{cfg: cfg}

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Operator client for the logistics dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.ServerURL, "server", cfg.ServerURL, "dashboard server base URL")
	flags.StringVar(&c.cfg.SessionFile, "session-file", cfg.SessionFile, "where the local session is kept")
	flags.StringVar(&c.cfg.LogLevel, "log-level", cfg.LogLevel, "log level written to stderr")

	root.AddCommand(
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newNavigateCmd(c),
		newWatchCmd(c),
		newTasksCmd(c),
		newResourcesCmd(c),
	)
	return root
}

func (c *cli) init() error {
	logger, err := observability.NewLogger(config.LoggerConfig{
		Level:    c.cfg.LogLevel,
		Encoding: "console",
		Service:  "dashctl",
		Output:   "stderr",
	})
	if err != nil {
		return err
	}
	c.logger = logger
	c.store = session.NewFileStore(c.cfg.SessionFile)
	return nil
}

// api returns a REST client authenticated with the stored token, if any.
func (c *cli) api() (*apiclient.Client, *session.LocalRecord, error) {
	rec, err := c.store.Load()
	if err != nil {
		return nil, nil, err
	}
	opts := []apiclient.Option{apiclient.WithHTTPClient(&http.Client{Timeout: c.cfg.RequestTimeout})}
	if rec != nil {
		opts = append(opts, apiclient.WithToken(rec.Token))
	}
	return apiclient.New(c.cfg.ServerURL, opts...), rec, nil
}

// authedAPI is api for commands that need a signed-in user.
func (c *cli) authedAPI() (*apiclient.Client, *session.LocalRecord, error) {
	client, rec, err := c.api()
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, errNotSignedIn
	}
	return client, rec, nil
}

// liveURL maps the server base URL onto the websocket endpoint.
func liveURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported server scheme " + u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}
