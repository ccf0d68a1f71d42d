package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/config"
)

func newTestMock(cfg config.MockConfig) *Mock {
	m := NewMock(&cfg)
	m.sleep = func(time.Duration) {}
	return m
}

func TestNewMock_NilConfig(t *testing.T) {
	m := NewMock(nil)
	require.NotNil(t, m.cfg)
	assert.Equal(t, config.Default().Mock, *m.cfg)
	assert.False(t, m.IsConnected())
}

func TestMock_Lifecycle(t *testing.T) {
	m := newTestMock(config.MockConfig{CountsPerUnit: 1})

	assert.ErrorIs(t, m.PowerUp(), ErrNotConnected)
	_, err := m.Read()
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, m.Connect())
	assert.ErrorIs(t, m.Connect(), ErrAlreadyConnected)

	_, err = m.Read()
	assert.ErrorIs(t, err, ErrPoweredDown)
	assert.False(t, m.IsReady())

	require.NoError(t, m.PowerUp())
	assert.True(t, m.IsReady())

	require.NoError(t, m.PowerDown())
	assert.False(t, m.IsReady())

	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())
}

func TestMock_ReadyAfter(t *testing.T) {
	m := newTestMock(config.MockConfig{CountsPerUnit: 1, ReadyAfter: time.Hour})
	require.NoError(t, m.Connect())
	require.NoError(t, m.PowerUp())
	assert.False(t, m.IsReady())
}

func TestMock_RawFollowsLoad(t *testing.T) {
	tests := []struct {
		name string
		load float64
		want int32
	}{
		{"empty platform", 0, 8400},
		{"reference mass", 0.2359, 8400 + 23590},
		{"negative load", -0.1, 8400 - 10000},
		{"clamped high", 1000, 1<<23 - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMock(config.MockConfig{Offset: 8400, CountsPerUnit: 100000})
			require.NoError(t, m.Connect())
			require.NoError(t, m.PowerUp())
			m.SetLoad(tt.load)
			assert.Equal(t, tt.load, m.Load())

			v, err := m.Read()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1)
		})
	}
}

func TestMock_NoiseBounded(t *testing.T) {
	m := newTestMock(config.MockConfig{Offset: 1000, CountsPerUnit: 1, Noise: 50})
	require.NoError(t, m.Connect())
	require.NoError(t, m.PowerUp())

	for range 100 {
		v, err := m.Read()
		require.NoError(t, err)
		assert.InDelta(t, 1000, v, 51)
	}
}

func TestMock_ButtonsActiveLow(t *testing.T) {
	m := NewMock(nil)
	b := button.New(m.TarePin(), m.CalibratePin())

	assert.True(t, m.TarePin().Get(), "released reads high")
	assert.False(t, b.IsPressed(button.Tare))

	m.Press(button.Tare, true)
	assert.False(t, m.TarePin().Get())
	assert.True(t, b.IsPressed(button.Tare))
	assert.False(t, b.IsPressed(button.Calibrate))

	m.Press(button.Calibrate, true)
	assert.True(t, b.IsPressed(button.Calibrate))

	m.Press(button.Tare, false)
	m.Press(button.Calibrate, false)
	assert.False(t, b.IsPressed(button.Tare))
	assert.False(t, b.IsPressed(button.Calibrate))
}
