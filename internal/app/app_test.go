package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/classifier"
	"github.com/alanyoungcy/matchcast/internal/config"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNeedsPostgres(t *testing.T) {
	for _, mode := range []string{"serve", "rebuild", "ingest", "full"} {
		assert.True(t, needsPostgres(mode), mode)
	}
	assert.False(t, needsPostgres("simulate"))
}

func TestNewClassifier(t *testing.T) {
	cfg := config.Defaults().Classifier
	_, ok := newClassifier(cfg, discard()).(*classifier.Baseline)
	assert.True(t, ok)

	cfg.Kind = "remote"
	cfg.RemoteURL = "http://127.0.0.1:1/predict"
	c := newClassifier(cfg, discard())
	_, ok = c.(*classifier.Breaker)
	assert.True(t, ok)
	assert.Equal(t, classifier.RemoteModelID, c.ModelID())
}

func TestRun_SimulateMode(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.Defaults()
	cfg.Mode = "simulate"
	cfg.Redis.Addr = mr.Addr()
	cfg.Server.Enabled = false
	cfg.Live.SimulateEvery.Duration = time.Millisecond
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := New(&cfg, discard())
	defer a.Close()
	require.NoError(t, a.Run(ctx))
	assert.NoError(t, ctx.Err(), "simulation should finish on its own")
}

func TestRun_WireFailure(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "simulate"
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Redis.MaxRetries = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := New(&cfg, discard())
	defer a.Close()
	err := a.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: redis")
}
