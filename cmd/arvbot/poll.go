package main

import (
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/arvbot/internal/app"
)

func newPollCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run exactly one poll cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, poller, err := c.buildPoller(ctx, nil)
			if err != nil {
				return err
			}
			defer app.CloseStorage(store)

			_, err = poller.RunCycle(ctx)
			return err
		},
	}
}
