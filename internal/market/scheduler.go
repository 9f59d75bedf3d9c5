package market

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// StartRefresher refreshes the cached listings every minute. It returns the
// running scheduler; stop it on shutdown.
func StartRefresher(client *Client, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), client.opts.Timeout)
		defer cancel()

		_, err := client.RefreshListings(ctx)
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			logger.Warn("market listings refresh failed", "error", err.Error())
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logger.Info("market listings refresher started", "schedule", "every minute")

	return c, nil
}
