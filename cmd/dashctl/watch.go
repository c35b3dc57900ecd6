package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/liveclient"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
	"github.com/spec-kit/logistics-dashboard/internal/session"
)

// sessionPollInterval is how often watch rereads the session file for logins and logouts
// made by other dashctl invocations.
var sessionPollInterval = 2 * time.Second

func newWatchCmd(c *cli) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live dashboard updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rec, err := c.authedAPI()
			if err != nil {
				return err
			}
			wsURL, err := liveURL(c.cfg.ServerURL)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			var mu sync.Mutex

			client := liveclient.New(liveclient.Options{
				URL:     wsURL,
				Token:   rec.Token,
				Session: &rec.Session,
				Backoff: liveclient.ExponentialBackoff(c.cfg.BackoffBase, c.cfg.BackoffMax),
				Logger:  c.logger,
				Notifier: liveclient.NotifierFunc(func(level, message string) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintf(errOut, "[%s] %s\n", level, message)
				}),
				OnStatus: func(s liveclient.Status) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintf(errOut, "status: %s\n", s)
				},
			})

			client.Subscribe(protocol.TypeDashboardUpdate, func(protocol.Message) {
				snap, ok := client.Snapshot()
				if !ok {
					return
				}
				mu.Lock()
				printSnapshot(out, snap)
				mu.Unlock()
				if once {
					cancel()
				}
			})

			go followSession(ctx, c.store, rec, client, c.logger, func() {
				mu.Lock()
				fmt.Fprintln(errOut, "signed out; stopping")
				mu.Unlock()
				cancel()
			})

			err = client.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "exit after the first dashboard update")
	return cmd
}

// followSession hands new credentials to the live client whenever the session file changes
// and calls signedOut once it no longer holds a session.
func followSession(ctx context.Context, store *session.FileStore, current *session.LocalRecord, client *liveclient.Client, logger *zap.Logger, signedOut func()) {
	ticker := time.NewTicker(sessionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rec, err := store.Load()
		if err != nil {
			logger.Warn("reading session file", zap.Error(err))
			continue
		}
		if rec == nil {
			signedOut()
			return
		}
		if rec.Token == current.Token && rec.Session.SameIdentity(&current.Session) {
			continue
		}
		logger.Info("session changed", zap.String("username", rec.Username), zap.String("role", string(rec.Role)))
		current = rec
		client.SetCredentials(&rec.Session, rec.Token)
	}
}

func printSnapshot(w io.Writer, snap domain.DashboardSnapshot) {
	fmt.Fprintf(w, "dashboard @ %s\n", snap.LastUpdated.Format("15:04:05"))

	keys := make([]string, 0, len(snap.Metrics))
	for k := range snap.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-32s %g\n", k, snap.Metrics[k])
	}
	for _, a := range snap.Alerts {
		fmt.Fprintf(w, "  ! [%s] %s: %s\n", a.Severity, a.Source, a.Message)
	}
	for _, a := range snap.Activities {
		fmt.Fprintf(w, "  - %s\n", a.Description)
	}
}
