package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/meteo-crawler/internal/config"
)

func TestApplyFlagsOverridesOnlyChangedFlags(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	before := cfg

	crawl := newCrawlCmd()
	require.NoError(t, crawl.ParseFlags([]string{"--workers", "0", "--refresh-assets", "--old-prevs"}))
	require.NoError(t, applyFlags(crawl, &cfg))

	assert.Equal(t, 0, cfg.Crawler.Workers)
	assert.False(t, cfg.Crawler.CacheAssets)
	assert.True(t, cfg.Crawler.CacheForecasts)
	assert.Equal(t, before.Crawler.TestMode, cfg.Crawler.TestMode)
	assert.Equal(t, before.Server.Port, cfg.Server.Port)
}

func TestApplyFlagsServePort(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	serve := newServeCmd()
	require.NoError(t, serve.ParseFlags([]string{"--port", "9191"}))
	require.NoError(t, applyFlags(serve, &cfg))
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestApplyFlagsRejectsInvalidResult(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	crawl := newCrawlCmd()
	require.NoError(t, crawl.ParseFlags([]string{"--workers=-1"}))
	assert.Error(t, applyFlags(crawl, &cfg))
}

func TestResolveAppWithoutApp(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	assert.ErrorContains(t, err, "not initialized")
}

func TestRootHasSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"crawl", "serve"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}
