package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrisk/internal/fetcher"
	"github.com/sells-group/roadrisk/internal/store"
)

// initStore opens the configured run store and applies its schema.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initFetcher builds the HTTP fetcher used for remote aggregate tables.
func initFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}
