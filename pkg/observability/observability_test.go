package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "veracity", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Insecure)
}

func TestDisabledProviderIsNoOp(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)

	// All record paths must be safe without instruments.
	p.RecordEvaluation(ctx, 0.85, "low")
	p.RecordAlert(ctx, "high", "uniform_timing")
	p.RecordTierTransition(ctx, "supervised", "restricted")
	assert.NotNil(t, p.Meter())
	assert.NoError(t, p.Shutdown(ctx))
}
