package calibration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goscale/pkg/button"
)

type fakeAcq struct {
	raws        []float64 // consumed one per ReadRaw, last value repeats
	reads       int
	tares       int
	sensitivity float32
	sets        int
	readErr     error
}

func (f *fakeAcq) ReadRaw(n int) (float64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	v := f.raws[min(f.reads, len(f.raws)-1)]
	f.reads++
	return v, nil
}

func (f *fakeAcq) Tare(n int) error {
	f.tares++
	return nil
}

func (f *fakeAcq) SetSensitivity(v float32) {
	f.sensitivity = v
	f.sets++
}

type fakeStore struct {
	saved []float32
	err   error
}

func (f *fakeStore) Save(v float32) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, v)
	return nil
}

type fakeInputs struct {
	pressed map[button.Button]bool
}

func (f *fakeInputs) IsPressed(b button.Button) bool { return f.pressed[b] }

type fakeReporter struct {
	candidates []float32
	status     []string
}

func (f *fakeReporter) Calibration(raw float64, sensitivity float32, referenceMass float32) {
	f.candidates = append(f.candidates, sensitivity)
}

func (f *fakeReporter) Status(format string, args ...any) {
	f.status = append(f.status, fmt.Sprintf(format, args...))
}

type sleepLog struct {
	waits []time.Duration
}

func (l *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	l.waits = append(l.waits, d)
	return ctx.Err()
}

type harness struct {
	acq    *fakeAcq
	store  *fakeStore
	inputs *fakeInputs
	rep    *fakeReporter
	sleeps *sleepLog
	engine *Engine
}

func newHarness(t *testing.T, raws ...float64) *harness {
	t.Helper()
	h := &harness{
		acq:    &fakeAcq{raws: raws},
		store:  &fakeStore{},
		inputs: &fakeInputs{pressed: map[button.Button]bool{}},
		rep:    &fakeReporter{},
		sleeps: &sleepLog{},
	}
	e, err := New(h.acq, h.store, h.inputs, h.rep, Options{
		ReferenceMass: 0.2359,
		Samples:       10,
		GraceDelay:    time.Second,
		ReleaseDelay:  2 * time.Second,
		Sleep:         h.sleeps.sleep,
	})
	require.NoError(t, err)
	h.engine = e
	return h
}

func TestNew_ZeroReferenceMass(t *testing.T) {
	e, err := New(&fakeAcq{}, &fakeStore{}, &fakeInputs{}, &fakeReporter{}, Options{})
	assert.ErrorIs(t, err, ErrZeroReferenceMass)
	assert.Nil(t, e)
}

func TestComputeSensitivity(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		ref  float32
		want float32
	}{
		{"scenario", 23590, 0.2359, 100000},
		{"unit reference", 87.5, 1, 87.5},
		{"grams", 420000, 500, 840},
		{"negative load cell polarity", -23590, 0.2359, -100000},
		{"empty platform", 0, 0.2359, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ComputeSensitivity(tt.raw, tt.ref), 1e-3)
		})
	}
}

func TestEngine_StartsIdle(t *testing.T) {
	h := newHarness(t, 0)
	assert.Equal(t, Idle, h.engine.State())

	st, err := h.engine.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, st)
	assert.Zero(t, h.acq.reads)
}

func TestEngine_BeginWaitsGraceDelay(t *testing.T) {
	h := newHarness(t, 0)

	require.NoError(t, h.engine.Begin(context.Background()))
	assert.Equal(t, Calibrating, h.engine.State())
	assert.Equal(t, []time.Duration{time.Second}, h.sleeps.waits)
	assert.Zero(t, h.acq.reads, "no sampling before the grace delay is over")
}

func TestEngine_StaysOpenWhileHeld(t *testing.T) {
	h := newHarness(t, 1000, 2000, 3000, 23590)
	h.inputs.pressed[button.Calibrate] = true
	require.NoError(t, h.engine.Begin(context.Background()))

	for i := range 4 {
		st, err := h.engine.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Calibrating, st, "step %d", i)
	}

	assert.Equal(t, 4, h.acq.reads)
	require.Len(t, h.rep.candidates, 4)
	assert.InDelta(t, 1000/0.2359, h.rep.candidates[0], 0.1)
	assert.InDelta(t, 100000, h.rep.candidates[3], 0.1)

	// Nothing is committed while the button is held.
	assert.Zero(t, h.acq.sets)
	assert.Empty(t, h.store.saved)

	c, ok := h.engine.Candidate()
	assert.True(t, ok)
	assert.InDelta(t, 100000, c, 0.1)
}

func TestEngine_CommitsOnRelease(t *testing.T) {
	h := newHarness(t, 23590)
	h.inputs.pressed[button.Calibrate] = true
	require.NoError(t, h.engine.Begin(context.Background()))

	_, err := h.engine.Step(context.Background())
	require.NoError(t, err)

	h.inputs.pressed[button.Calibrate] = false
	st, err := h.engine.Step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Idle, st)
	assert.Equal(t, Idle, h.engine.State())
	assert.Equal(t, 1, h.acq.reads, "release is tested before sampling")
	assert.InDelta(t, 100000, h.acq.sensitivity, 0.1)
	require.Len(t, h.store.saved, 1)
	assert.Equal(t, h.acq.sensitivity, h.store.saved[0])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps.waits)
}

func TestEngine_CommitsLastCandidate(t *testing.T) {
	h := newHarness(t, 100, 200, 300)
	h.inputs.pressed[button.Calibrate] = true
	require.NoError(t, h.engine.Begin(context.Background()))

	for range 3 {
		_, err := h.engine.Step(context.Background())
		require.NoError(t, err)
	}
	h.inputs.pressed[button.Calibrate] = false
	_, err := h.engine.Step(context.Background())
	require.NoError(t, err)

	require.Len(t, h.store.saved, 1)
	assert.Equal(t, ComputeSensitivity(300, 0.2359), h.store.saved[0])
}

func TestEngine_ReleasedDuringGraceDelay(t *testing.T) {
	h := newHarness(t, 23590)
	require.NoError(t, h.engine.Begin(context.Background()))

	st, err := h.engine.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, st)
	assert.Equal(t, 1, h.acq.reads)
	require.Len(t, h.store.saved, 1)
	assert.InDelta(t, 100000, h.store.saved[0], 0.1)
}

func TestEngine_TareWhileCalibrating(t *testing.T) {
	h := newHarness(t, 23590)
	h.inputs.pressed[button.Calibrate] = true
	h.inputs.pressed[button.Tare] = true
	require.NoError(t, h.engine.Begin(context.Background()))

	st, err := h.engine.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Calibrating, st)
	assert.Equal(t, 1, h.acq.tares)
	assert.Equal(t, 1, h.acq.reads)
	assert.Contains(t, h.rep.status, "Calibration: tared")
}

func TestEngine_TareIgnoredOnExit(t *testing.T) {
	h := newHarness(t, 23590)
	h.inputs.pressed[button.Tare] = true
	require.NoError(t, h.engine.Begin(context.Background()))

	_, err := h.engine.Step(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.acq.tares)
}

func TestEngine_ReadErrorKeepsCalibrating(t *testing.T) {
	h := newHarness(t, 0)
	h.inputs.pressed[button.Calibrate] = true
	h.acq.readErr = errors.New("timeout")
	require.NoError(t, h.engine.Begin(context.Background()))

	st, err := h.engine.Step(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Calibrating, st)
}

func TestEngine_SaveFailureStillApplies(t *testing.T) {
	h := newHarness(t, 23590)
	h.store.err = errors.New("eeprom worn out")
	require.NoError(t, h.engine.Begin(context.Background()))

	st, err := h.engine.Step(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eeprom worn out")
	assert.Equal(t, Idle, st)
	assert.InDelta(t, 100000, h.acq.sensitivity, 0.1)
	assert.Equal(t, 1, h.engine.Commits())
}

func TestEngine_BeginCancelled(t *testing.T) {
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.engine.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Idle, h.engine.State())
}

func TestEngine_Reenter(t *testing.T) {
	h := newHarness(t, 23590)
	for range 2 {
		require.NoError(t, h.engine.Begin(context.Background()))
		_, err := h.engine.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Idle, h.engine.State())
	}
	assert.Len(t, h.store.saved, 2)
	assert.Equal(t, 2, h.engine.Commits())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Calibrating", Calibrating.String())
	assert.Equal(t, "State(5)", State(5).String())
}

func TestEngine_RejectsUnusableCandidate(t *testing.T) {
	h := newHarness(t, 0)
	h.inputs.pressed[button.Calibrate] = true
	require.NoError(t, h.engine.Begin(context.Background()))

	_, err := h.engine.Step(context.Background())
	require.NoError(t, err)

	h.inputs.pressed[button.Calibrate] = false
	st, err := h.engine.Step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Idle, st)
	assert.Zero(t, h.acq.sets, "the sensitivity in effect is kept")
	assert.Empty(t, h.store.saved)
	assert.Zero(t, h.engine.Commits())
	assert.Contains(t, h.rep.status[len(h.rep.status)-1], "Calibration rejected")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps.waits)
}

func TestUsable(t *testing.T) {
	tests := []struct {
		name string
		v    float32
		want bool
	}{
		{"calibrated", 100000, true},
		{"negative", -840, true},
		{"zero", 0, false},
		{"nan", math32.NaN(), false},
		{"positive infinity", math32.Inf(1), false},
		{"negative infinity", math32.Inf(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Usable(tt.v))
		})
	}
}
