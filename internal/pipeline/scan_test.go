package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/mempool"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// steppedClock advances by step on every read so no frame is rate-skipped.
type steppedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type collector struct {
	mu      sync.Mutex
	results []Result
	errs    []error
}

func (c *collector) onResult(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *collector) onError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *collector) snapshot() ([]Result, []error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...), append([]error(nil), c.errs...)
}

func manualOptions(ticks chan time.Time, c *collector) ScanOptions {
	clock := &steppedClock{now: time.Unix(1_700_000_000, 0), step: 100 * time.Millisecond}
	return ScanOptions{
		OnResult:  c.onResult,
		OnError:   c.onError,
		Scheduler: FrameClock{C: ticks},
		Clock:     clock.Now,
	}
}

func waitDone(t *testing.T, h *ScanHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("scan did not stop")
	}
}

func TestStartVideoScan_Validation(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	ctx := context.Background()

	_, err := d.StartVideoScan(ctx, nil, ScanOptions{OnResult: func(Result) {}})
	assert.ErrorIs(t, err, source.ErrNilSource)

	_, err = d.StartVideoScan(ctx, source.NewFeed(), ScanOptions{})
	assert.ErrorIs(t, err, ErrMissingOnResult)
}

func TestScan_EmitsOnceForStableCode(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	feed := source.NewFeed()
	require.NoError(t, feed.Push(helloQR(t)))

	ticks := make(chan time.Time)
	c := &collector{}
	opts := manualOptions(ticks, c)
	var transitions []Transition
	opts.OnModeChange = func(tr Transition) { transitions = append(transitions, tr) }
	h, err := d.StartVideoScan(context.Background(), feed, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())
	assert.True(t, h.IsRunning())

	for i := 0; i < 4; i++ {
		ticks <- time.Now()
	}
	close(ticks)
	waitDone(t, h)

	results, errs := c.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, "HELLO", results[0].Text)
	assert.Equal(t, StageSearch, results[0].Stage)
	assert.Empty(t, errs)
	assert.Equal(t, ModeTrack, h.Mode())
	assert.Equal(t, []Transition{{From: ModeSearch, To: ModeTrack}}, transitions)
	assert.False(t, h.IsRunning())
	assert.Zero(t, d.luma.Cap(mempool.ClassVideo))
}

func TestScan_FrameErrorsDoNotStopScan(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	feed := source.NewFeed()

	ticks := make(chan time.Time)
	c := &collector{}
	h, err := d.StartVideoScan(context.Background(), feed, manualOptions(ticks, c))
	require.NoError(t, err)

	ticks <- time.Now()
	ticks <- time.Now()
	require.NoError(t, feed.Push(helloQR(t)))
	ticks <- time.Now()
	close(ticks)
	waitDone(t, h)

	results, errs := c.snapshot()
	require.Len(t, results, 1)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], source.ErrNotReady)
}

func TestScanHandle_StopIsIdempotent(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	c := &collector{}
	h, err := d.StartVideoScan(context.Background(), source.NewFeed(), manualOptions(make(chan time.Time), c))
	require.NoError(t, err)

	h.Stop()
	h.Stop()
	waitDone(t, h)
	assert.False(t, h.IsRunning())

	// Still usable for one-shot decodes.
	out, err := d.DecodeImage(context.Background(), helloQR(t), nil)
	require.NoError(t, err)
	assert.True(t, out.OK())
}

func TestScan_ContextCancellationStops(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	h, err := d.StartVideoScan(ctx, source.NewFeed(), manualOptions(make(chan time.Time), c))
	require.NoError(t, err)

	cancel()
	waitDone(t, h)
	assert.False(t, h.IsRunning())
}

func TestScan_NewScanReplacesPrevious(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	c := &collector{}
	first, err := d.StartVideoScan(context.Background(), source.NewFeed(), manualOptions(make(chan time.Time), c))
	require.NoError(t, err)

	second, err := d.StartVideoScan(context.Background(), source.NewFeed(), manualOptions(make(chan time.Time), c))
	require.NoError(t, err)

	waitDone(t, first)
	assert.False(t, first.IsRunning())
	assert.True(t, second.IsRunning())
	assert.NotEqual(t, first.ID(), second.ID())

	second.Stop()
	waitDone(t, second)
}

func TestScan_DisposeStopsScan(t *testing.T) {
	d, err := NewBuilder().Build()
	require.NoError(t, err)

	c := &collector{}
	h, err := d.StartVideoScan(context.Background(), source.NewFeed(), manualOptions(make(chan time.Time), c))
	require.NoError(t, err)

	d.Dispose()
	waitDone(t, h)
	assert.False(t, h.IsRunning())

	_, err = d.StartVideoScan(context.Background(), source.NewFeed(), manualOptions(make(chan time.Time), c))
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestScan_StopFromCallback(t *testing.T) {
	d := newTestDecoder(t, NewBuilder())
	feed := source.NewFeed()
	require.NoError(t, feed.Push(helloQR(t)))

	ticks := make(chan time.Time, 8)
	for i := 0; i < 8; i++ {
		ticks <- time.Now()
	}

	var h *ScanHandle
	var ready sync.WaitGroup
	ready.Add(1)
	var calls atomic.Int32
	opts := manualOptions(ticks, &collector{})
	opts.OnResult = func(Result) {
		calls.Add(1)
		ready.Wait()
		h.Stop()
	}

	var err error
	h, err = d.StartVideoScan(context.Background(), feed, opts)
	require.NoError(t, err)
	ready.Done()

	waitDone(t, h)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScan_AnimationEndsScan(t *testing.T) {
	sym := helloQR(t)
	frames := []*image.NRGBA{sym, sym, sym}
	delays := []time.Duration{40 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	anim, err := source.NewAnimation(frames, delays)
	require.NoError(t, err)

	d := newTestDecoder(t, NewBuilder())
	c := &collector{}
	h, err := d.StartVideoScan(context.Background(), anim, ScanOptions{OnResult: c.onResult, OnError: c.onError})
	require.NoError(t, err)

	require.NoError(t, anim.Play(context.Background()))
	waitDone(t, h)

	results, _ := c.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, "HELLO", results[0].Text)
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(1000)
	defer s.Stop()

	_, ok := s.Next(context.Background())
	assert.True(t, ok)

	slow := NewTickerScheduler(1)
	defer slow.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = slow.Next(ctx)
	assert.False(t, ok)
}
