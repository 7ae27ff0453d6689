package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/arvbot/internal/adapters/notify"
	"github.com/alejandrodnm/arvbot/internal/app"
	"github.com/alejandrodnm/arvbot/internal/application/session"
	"github.com/alejandrodnm/arvbot/internal/domain"
)

func newSessionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and drive sessions from the terminal",
	}
	cmd.AddCommand(
		newSessionCreateCmd(c),
		newSessionGetCmd(c),
		newSessionActivateCmd(c),
		newSessionCompleteCmd(c),
		newSessionInvestCmd(c),
		newSessionListCmd(c),
		newSessionDeleteCmd(c),
	)
	return cmd
}

// withSessions abre el storage, corre fn y lo cierra. Los comandos de sesión
// no necesitan login en el exchange.
func (c *cli) withSessions(cmd *cobra.Command, fn func(ctx context.Context, svc *session.Service, out *notify.Console) error) error {
	ctx := cmd.Context()
	store, err := app.OpenStorage(ctx, c.cfg.Storage)
	if err != nil {
		return err
	}
	defer app.CloseStorage(store)

	return fn(ctx, session.New(store), notify.NewConsoleWriter(cmd.OutOrStdout(), true, c.verbose))
}

func newSessionCreateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "create IMAGE IMAGE",
		Short: "Create a pending session over two images",
		Args:  cobra.ExactArgs(domain.SessionImages),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, out *notify.Console) error {
				sess, err := svc.Create(ctx, args)
				if err != nil {
					return err
				}
				out.PrintSession(sess)
				return nil
			})
		},
	}
}

func newSessionGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, out *notify.Console) error {
				sess, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				out.PrintSession(sess)
				return nil
			})
		},
	}
}

func newSessionActivateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID IMPRESSION...",
		Short: "Record the impression text (pending -> active)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, out *notify.Console) error {
				sess, err := svc.Activate(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				out.PrintSession(sess)
				return nil
			})
		},
	}
}

func newSessionCompleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID CHOSEN_IDX",
		Short: "Record the chosen image (active -> completed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chosen index %q: %w", args[1], domain.ErrInvalidInput)
			}
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, out *notify.Console) error {
				sess, err := svc.Complete(ctx, args[0], idx)
				if err != nil {
					return err
				}
				out.PrintSession(sess)
				return nil
			})
		},
	}
}

func newSessionInvestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "invest ID",
		Short: "Hand the session to the poller (completed -> investing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, out *notify.Console) error {
				sess, err := svc.Invest(ctx, args[0])
				if err != nil {
					return err
				}
				out.PrintSession(sess)
				return nil
			})
		},
	}
}

func newSessionListCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter domain.SessionStatus
			if status != "" {
				st, err := domain.ParseSessionStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, out *notify.Console) error {
				sessions, err := svc.List(ctx, filter)
				if err != nil {
					return err
				}
				out.PrintSessions(sessions)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending|active|completed|investing|invested|investment_resolved")
	return cmd
}

func newSessionDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessions(cmd, func(ctx context.Context, svc *session.Service, _ *notify.Console) error {
				if err := svc.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
