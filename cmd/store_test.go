//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrisk/internal/config"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/store"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	// Schema is applied.
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = st.CreateRun(context.Background(), model.RunRequest{Year: 2023})
	require.NoError(t, err)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestInitFetcher(t *testing.T) {
	cfg = &config.Config{Fetch: config.FetchConfig{UserAgent: "roadrisk-test", TimeoutSecs: 5, MaxRetries: 2}}
	assert.NotNil(t, initFetcher())
}
