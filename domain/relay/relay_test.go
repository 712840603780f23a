package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/soocke/framerelay/domain/convert"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func synthFrame(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func TestSlot_MarkFreeOnFreeSlotPanics(t *testing.T) {
	p := NewPair()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic")
		}
		if _, ok := r.(*ProtocolViolation); !ok {
			t.Fatalf("expected *ProtocolViolation, got %T", r)
		}
	}()
	p.Camera().MarkFree()
}

func TestSlot_TryMarkBusyIsExclusive(t *testing.T) {
	var s Slot
	if !s.TryMarkBusy() {
		t.Fatalf("first claim failed")
	}
	if s.TryMarkBusy() {
		t.Fatalf("second claim succeeded while busy")
	}
	s.MarkFree()
	if !s.TryMarkBusy() {
		t.Fatalf("claim after release failed")
	}
}

func TestPair_SwapRoles(t *testing.T) {
	p := NewPair()
	cam, proc := p.Camera(), p.Processing()
	p.SwapRoles()
	if p.Camera() != proc || p.Processing() != cam {
		t.Fatalf("roles not exchanged")
	}
}

func TestMovingAverage_FirstSampleThenDecay(t *testing.T) {
	m := NewMovingAverage(0.95)
	m.Update(10)
	if m.Average != 10 || m.Maximum != 10 {
		t.Fatalf("after first sample: %+v", m)
	}
	m.Update(20)
	if math.Abs(m.Average-10.5) > 1e-9 {
		t.Fatalf("expected 10.5, got %v", m.Average)
	}
	if m.Maximum != 20 || m.Count != 2 {
		t.Fatalf("unexpected max/count: %+v", m)
	}
	m.Reset()
	if m.Count != 0 || m.Average != 0 || m.Decay != 0.95 {
		t.Fatalf("reset lost decay or kept samples: %+v", m)
	}
}

func TestSubmit_DropsWhenCameraBusy(t *testing.T) {
	r := New(Options{}, discardLogger())
	cam := r.Pair().Camera()
	if !cam.TryMarkBusy() {
		t.Fatalf("claim failed")
	}
	done := make(chan bool, 1)
	go func() { done <- r.Submit(synthFrame(4, 4, 1), 1) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("submit succeeded while camera slot busy")
		}
	case <-time.After(time.Second):
		t.Fatalf("submit blocked on a busy slot")
	}
	cam.MarkFree()
	if st := r.Stats(); st.Dropped != 1 || st.Submitted != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestWorker_AlwaysBusyProducerProcessesNothing(t *testing.T) {
	r := New(Options{}, discardLogger())
	calls := 0
	w := NewWorker(r, ProcessorFunc(func(*Frame) error { calls++; return nil }), nil, 0, discardLogger())
	cam := r.Pair().Camera()
	cam.TryMarkBusy()
	cam.Seq = 42 // written by a producer that never releases
	for i := 0; i < 100; i++ {
		if w.Step() {
			t.Fatalf("step processed while camera slot held")
		}
	}
	if calls != 0 {
		t.Fatalf("processor ran %d times", calls)
	}
}

func TestWorker_ShouldSleepOncePaused(t *testing.T) {
	r := New(Options{}, discardLogger())
	w := NewWorker(r, ProcessorFunc(func(*Frame) error { return nil }), nil, 0, discardLogger())
	r.Submit(synthFrame(4, 4, 9), 1)
	if !w.Step() {
		t.Fatalf("expected first step to process")
	}
	for i := 0; i < 10; i++ {
		if w.Step() {
			t.Fatalf("step %d processed with paused producer", i)
		}
	}
	if w.LastProcessed() != 1 {
		t.Fatalf("last processed = %d", w.LastProcessed())
	}
}

func TestWorker_SkipsIntermediateFrames(t *testing.T) {
	r := New(Options{}, discardLogger())
	var seen []uint64
	w := NewWorker(r, ProcessorFunc(func(f *Frame) error {
		seen = append(seen, f.Seq)
		return nil
	}), nil, 0, discardLogger())
	for i := 0; i < 5; i++ {
		r.Submit(synthFrame(4, 4, uint8(i)), int64(i))
	}
	w.Step()
	r.Submit(synthFrame(4, 4, 6), 6)
	r.Submit(synthFrame(4, 4, 7), 7)
	w.Step()
	if len(seen) != 2 || seen[0] != 5 || seen[1] != 7 {
		t.Fatalf("expected [5 7], got %v", seen)
	}
}

func TestWorker_ProducerCannotWriteProcessingSlot(t *testing.T) {
	r := New(Options{}, discardLogger())
	w := NewWorker(r, ProcessorFunc(func(f *Frame) error {
		seq := f.Seq
		// A producer submitting mid-operation lands in the camera slot only.
		r.Submit(synthFrame(4, 4, 0), 0)
		if f.Seq != seq {
			t.Errorf("processing frame mutated: %d -> %d", seq, f.Seq)
		}
		return nil
	}), nil, 0, discardLogger())
	r.Submit(synthFrame(4, 4, 1), 1)
	w.Step()
	w.Step()
}

func TestWorker_ErrorAndPanicAreContained(t *testing.T) {
	r := New(Options{}, discardLogger())
	n := 0
	results := 0
	w := NewWorker(r, ProcessorFunc(func(*Frame) error {
		n++
		switch n {
		case 1:
			return errors.New("boom")
		case 2:
			panic("kaboom")
		}
		return nil
	}), func(*Frame) { results++ }, 0, discardLogger())
	for i := 0; i < 3; i++ {
		r.Submit(synthFrame(2, 2, 1), int64(i))
		w.Step()
	}
	st := r.Stats()
	if st.Failed != 2 || st.Processed != 1 || results != 1 {
		t.Fatalf("unexpected failed=%d processed=%d results=%d", st.Failed, st.Processed, results)
	}
}

func TestWorker_ConcurrentSequenceStrictlyIncreases(t *testing.T) {
	r := New(Options{Mode: convert.GrayAndColor}, discardLogger())
	var mu sync.Mutex
	var seen []uint64
	w := NewWorker(r, ProcessorFunc(func(f *Frame) error {
		if f.Gray == nil || f.Color == nil {
			t.Errorf("missing planes for seq %d", f.Seq)
		}
		return nil
	}), func(f *Frame) {
		mu.Lock()
		seen = append(seen, f.Seq)
		mu.Unlock()
	}, time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	frame := synthFrame(16, 16, 128)
	for i := 0; i < 2000; i++ {
		r.Submit(frame, int64(i))
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Stats().LastProcessed == r.Stats().LastSeq {
			break
		}
		time.Sleep(time.Millisecond)
	}
	w.Stop()
	if w.Running() {
		t.Fatalf("worker still running after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatalf("nothing processed")
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("sequence not increasing at %d: %d then %d", i, seen[i-1], seen[i])
		}
	}
	if last := seen[len(seen)-1]; last != r.Stats().LastSeq {
		t.Fatalf("newest frame %d never processed (last %d)", r.Stats().LastSeq, last)
	}
	// Both slots released after the worker detached.
	if r.Pair().Camera().Busy() || r.Pair().Processing().Busy() {
		t.Fatalf("slot left busy after stop")
	}
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	r := New(Options{}, discardLogger())
	w := NewWorker(r, nil, nil, 5*time.Millisecond, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatalf("worker did not exit on cancel")
	}
}

func TestSubmit_ReusesSlotBuffers(t *testing.T) {
	r := New(Options{Mode: convert.GrayOnly}, discardLogger())
	w := NewWorker(r, nil, nil, 0, discardLogger())
	img := synthFrame(8, 8, 3)
	r.Submit(img, 0)
	w.Step()
	r.Submit(img, 1)
	w.Step()
	a := &r.Pair().Camera().Gray.Pix[0]
	b := &r.Pair().Processing().Gray.Pix[0]
	for i := 0; i < 4; i++ {
		r.Submit(img, int64(i+2))
		w.Step()
	}
	ca := &r.Pair().Camera().Gray.Pix[0]
	cb := &r.Pair().Processing().Gray.Pix[0]
	if !((ca == a && cb == b) || (ca == b && cb == a)) {
		t.Fatalf("slot buffers reallocated at constant resolution")
	}
}

func TestSubmit_LogsProfileEveryN(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	r := New(Options{ProfileEvery: 3}, logger)
	for i := 0; i < 6; i++ {
		if !r.Submit(synthFrame(4, 4, uint8(i)), int64(i)) {
			t.Fatalf("submit %d dropped", i)
		}
	}

	dec := json.NewDecoder(&out)
	var frames []float64
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		if rec["msg"] != "relay.profile" {
			continue
		}
		for _, k := range []string{"frames", "convert_ms", "process_ms"} {
			if _, ok := rec[k]; !ok {
				t.Fatalf("profile record missing %q: %v", k, rec)
			}
		}
		frames = append(frames, rec["frames"].(float64))
	}
	if len(frames) != 2 || frames[0] != 3 || frames[1] != 6 {
		t.Fatalf("expected profile lines at 3 and 6 frames, got %v", frames)
	}
}

func TestWorker_DetachReleasesProcessingSlot(t *testing.T) {
	r := New(Options{}, discardLogger())
	first := NewWorker(r, ProcessorFunc(func(*Frame) error { return nil }), nil, 0, discardLogger())
	r.Submit(synthFrame(4, 4, 1), 1)
	if !first.Step() {
		t.Fatalf("first worker processed nothing")
	}
	if !r.Pair().Processing().Busy() {
		t.Fatalf("Step did not attach the worker")
	}
	first.Detach()
	if r.Pair().Processing().Busy() {
		t.Fatalf("processing slot still held after Detach")
	}
	first.Detach()

	var seen []uint64
	second := NewWorker(r, ProcessorFunc(func(f *Frame) error {
		seen = append(seen, f.Seq)
		return nil
	}), nil, 0, discardLogger())
	r.Submit(synthFrame(4, 4, 2), 2)
	second.Step()
	second.Detach()
	if len(seen) != 1 || seen[0] != 2 {
		t.Fatalf("second worker saw %v, want [2]", seen)
	}
}
