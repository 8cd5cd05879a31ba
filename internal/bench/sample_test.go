package bench

import (
	"fmt"
	"testing"
	"time"

	"github.com/appnet-org/wirebench/pkg/transport"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeWithWait(wait time.Duration) *transport.Probe {
	clock := clockwork.NewFakeClock()
	p := transport.NewProbe(clock)
	clock.Advance(wait)
	p.MarkHeaders()
	return p
}

func TestComputeSample(t *testing.T) {
	s, err := ComputeSample("WebAPI", probeWithWait(1234*time.Millisecond), 2*time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, "WebAPI", s.Client)
	assert.Equal(t, 1.23, s.NetworkSeconds)
	assert.Equal(t, 0.77, s.DeserializationSeconds)
	assert.Zero(t, s.DataSizeKB)
	assert.False(t, s.Clamped)
}

func TestComputeSample_NegativeResidual(t *testing.T) {
	p := probeWithWait(300 * time.Millisecond)

	s, err := ComputeSample("c", p, 200*time.Millisecond, true)
	require.NoError(t, err)
	assert.True(t, s.Clamped)
	assert.Equal(t, 0.0, s.DeserializationSeconds)
	assert.Equal(t, 0.3, s.NetworkSeconds)

	s, err = ComputeSample("c", p, 200*time.Millisecond, false)
	require.NoError(t, err)
	assert.True(t, s.Clamped)
	assert.Equal(t, -0.1, s.DeserializationSeconds)
}

func TestComputeSample_TinyNegativeIsNotMinusZero(t *testing.T) {
	s, err := ComputeSample("c", probeWithWait(time.Second), time.Second-time.Millisecond, false)
	require.NoError(t, err)
	assert.True(t, s.Clamped)
	assert.Equal(t, "0.00", fmt.Sprintf("%.2f", s.DeserializationSeconds))
}

func TestComputeSample_NoHeaders(t *testing.T) {
	_, err := ComputeSample("c", transport.NewProbe(clockwork.NewFakeClock()), time.Second, true)
	assert.ErrorIs(t, err, ErrNoMeasurement)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.98, round2(1000.0/1024))
	assert.Equal(t, 1.5, round2(1536.0/1024))
	assert.Equal(t, 9765.63, round2(10_000_000.0/1024))
	assert.Equal(t, 0.0, round2(0.004))
	assert.Equal(t, 0.01, round2(0.005))
}
