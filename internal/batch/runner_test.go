package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/crawler"
)

type fakeCrawler struct {
	calls atomic.Int32
	run   func(n int32) (crawler.Stats, error)
}

func (f *fakeCrawler) Run(context.Context) (crawler.Stats, error) {
	return f.run(f.calls.Add(1))
}

func TestRunOnceRecordsStatus(t *testing.T) {
	t.Parallel()

	c := &fakeCrawler{run: func(int32) (crawler.Stats, error) {
		return crawler.Stats{RunID: "r1", Zones: 3}, nil
	}}
	r := New(c, 4, zap.NewNop())

	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Zones)

	st := r.Status()
	assert.Equal(t, 1, st.Runs)
	assert.False(t, st.Running)
	assert.Equal(t, "r1", st.LastStats.RunID)
	assert.Empty(t, st.LastError)
}

func TestRunOnceRecoversPanics(t *testing.T) {
	t.Parallel()

	c := &fakeCrawler{run: func(int32) (crawler.Stats, error) { panic("kaboom") }}
	r := New(c, 4, zap.NewNop())

	_, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, r.Status().LastError, "kaboom")
}

func TestStartRunsImmediatelyAndSurvivesFailures(t *testing.T) {
	t.Parallel()

	c := &fakeCrawler{run: func(int32) (crawler.Stats, error) {
		return crawler.Stats{}, errors.New("upstream down")
	}}
	r := New(c, 4, zap.NewNop())
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	require.Eventually(t, func() bool {
		return r.Status().Runs == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "upstream down", r.Status().LastError)
}
