package board

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Frame
		wantErr bool
	}{
		{
			name: "ready, both released",
			line: "1,23590,1,1",
			want: Frame{Ready: true, Raw: 23590, Tare: true, Calibrate: true},
		},
		{
			name: "negative reading, calibrate held",
			line: "1,-8400,1,0",
			want: Frame{Ready: true, Raw: -8400, Tare: true, Calibrate: false},
		},
		{
			name: "not ready",
			line: "0,0,0,1",
			want: Frame{Ready: false, Raw: 0, Tare: false, Calibrate: true},
		},
		{
			name: "24-bit extremes",
			line: "1,8388607,1,1",
			want: Frame{Ready: true, Raw: 8388607, Tare: true, Calibrate: true},
		},
		{
			name: "24-bit minimum",
			line: "1,-8388608,1,1",
			want: Frame{Ready: true, Raw: -8388608, Tare: true, Calibrate: true},
		},
		{name: "invalid - too few fields", line: "1,100,1", wantErr: true},
		{name: "invalid - too many fields", line: "1,100,1,1,1", wantErr: true},
		{name: "invalid - ready flag", line: "2,100,1,1", wantErr: true},
		{name: "invalid - non-numeric reading", line: "1,abc,1,1", wantErr: true},
		{name: "invalid - reading out of range", line: "1,8388608,1,1", wantErr: true},
		{name: "invalid - tare level", line: "1,100,x,1", wantErr: true},
		{name: "invalid - calibrate level", line: "1,100,1,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSerial(t *testing.T) {
	dev := NewSerial("COM3", 57600, 2*time.Second)
	assert.Equal(t, "COM3", dev.port)
	assert.Equal(t, 57600, dev.baudRate)
	assert.Equal(t, 2*time.Second, dev.readTimeout)
	assert.False(t, dev.IsConnected())
}

func TestNewSerial_Defaults(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultReadTimeout, dev.readTimeout)
}

func TestSerial_NotConnected(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)

	assert.ErrorIs(t, dev.PowerUp(), ErrNotConnected)
	assert.ErrorIs(t, dev.PowerDown(), ErrNotConnected)
	_, err := dev.Read()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, dev.IsReady())
	assert.NoError(t, dev.Close())
}

func TestSerial_ButtonsReleasedBeforeFirstFrame(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.True(t, dev.TarePin().Get())
	assert.True(t, dev.CalibratePin().Get())
}

func TestSerial_ReadFrames(t *testing.T) {
	dev := NewSerial("COM3", 0, 50*time.Millisecond)
	dev.connected = true

	dev.readFrames(strings.NewReader("garbage\n\n0,0,1,1\n1,100,1,1\n1,200,0,1\n"))

	last := dev.Last()
	assert.True(t, last.Ready)
	assert.Equal(t, int32(200), last.Raw)
	assert.False(t, dev.TarePin().Get())
	assert.True(t, dev.CalibratePin().Get())
	assert.True(t, dev.IsReady())

	v, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(100), v)
	v, err = dev.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(200), v)

	_, err = dev.Read()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSerial_PushDropsOldest(t *testing.T) {
	dev := NewSerial("COM3", 0, 50*time.Millisecond)
	dev.connected = true

	for i := range DefaultBufferSize + 3 {
		dev.push(Frame{Ready: true, Raw: int32(i), Tare: true, Calibrate: true})
	}

	first, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(3), first)
}

func TestSerial_StaleReadyFlag(t *testing.T) {
	dev := NewSerial("COM3", 0, 10*time.Millisecond)
	dev.connected = true
	dev.push(Frame{Ready: true, Received: time.Now().Add(-time.Second)})

	assert.False(t, dev.IsReady())
}

func TestSerial_ReadyAcrossStatusFrames(t *testing.T) {
	dev := NewSerial("COM3", 0, time.Second)
	dev.connected = true

	now := time.Now()
	dev.push(Frame{Ready: true, Raw: 10, Received: now})
	dev.push(Frame{Ready: false, Tare: true, Calibrate: true, Received: now})

	assert.False(t, dev.Last().Ready)
	assert.True(t, dev.IsReady(), "a recent conversion keeps the amplifier ready")
}

func TestSerial_NotReadyBeforeFirstConversion(t *testing.T) {
	dev := NewSerial("COM3", 0, time.Second)
	dev.connected = true
	dev.push(Frame{Ready: false, Tare: true, Calibrate: true, Received: time.Now()})

	assert.False(t, dev.IsReady())
}
