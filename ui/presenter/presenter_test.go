package presenter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soocke/framerelay/domain/display"
	"github.com/soocke/framerelay/domain/pipeline"
	"github.com/soocke/framerelay/domain/relay"
	"github.com/soocke/framerelay/ui/model"
)

type mockRunner struct {
	mu       sync.Mutex
	started  int
	stopped  int
	startErr error
}

func (r *mockRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return r.startErr
}

func (r *mockRunner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return nil
}

func (r *mockRunner) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, r.stopped
}

type mockRunView struct {
	reset, editableCalls int
	lastEditable         bool
	lastError            string
}

func (v *mockRunView) PreviewReset()         { v.reset++ }
func (v *mockRunView) ConfigEditable(b bool) { v.editableCalls++; v.lastEditable = b }
func (v *mockRunView) SetError(msg string)   { v.lastError = msg }

// settle ticks p until want results have been applied.
func settle(t *testing.T, p *RunPresenter, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.Tick()
		if p.applied >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("only %d of %d requests completed", p.applied, want)
}

func TestRunPresenter_EnableDisable_Idempotent(t *testing.T) {
	m := model.NewPreviewModel()
	r := &mockRunner{}
	v := &mockRunView{}
	p := NewRunPresenter(m, r, v, nil)

	p.Enable()
	p.Enable()
	settle(t, p, 1)
	if s, _ := r.counts(); !m.Enabled() || s != 1 || v.lastEditable || v.editableCalls != 1 {
		t.Fatalf("enable failed: enabled=%v started=%d editableCalls=%d lastEditable=%v", m.Enabled(), s, v.editableCalls, v.lastEditable)
	}

	p.Disable()
	p.Disable()
	settle(t, p, 2)
	if _, st := r.counts(); m.Enabled() || st != 1 || v.reset != 1 || !v.lastEditable || v.editableCalls != 2 {
		t.Fatalf("disable failed: enabled=%v stopped=%d reset=%d editableCalls=%d lastEditable=%v", m.Enabled(), st, v.reset, v.editableCalls, v.lastEditable)
	}
}

func TestRunPresenter_ToggleKeepsOrder(t *testing.T) {
	m := model.NewPreviewModel()
	r := &mockRunner{}
	v := &mockRunView{}
	p := NewRunPresenter(m, r, v, nil)
	p.Toggle()
	p.Toggle()
	p.Toggle()
	settle(t, p, 3)
	if s, st := r.counts(); s != 2 || st != 1 || !m.Enabled() {
		t.Fatalf("started=%d stopped=%d enabled=%v", s, st, m.Enabled())
	}
}

func TestRunPresenter_StartFailureRevertsToggle(t *testing.T) {
	m := model.NewPreviewModel()
	r := &mockRunner{startErr: errors.New("no device")}
	v := &mockRunView{}
	p := NewRunPresenter(m, r, v, nil)
	p.Enable()
	settle(t, p, 1)
	if m.Enabled() {
		t.Fatalf("failed start should disable the toggle")
	}
	if v.lastError != "no device" || !v.lastEditable {
		t.Fatalf("error not surfaced: err=%q editable=%v", v.lastError, v.lastEditable)
	}
	r.startErr = nil
	p.Enable()
	settle(t, p, 2)
	if !m.Enabled() || v.lastError != "" {
		t.Fatalf("retry should succeed and clear the error: enabled=%v err=%q", m.Enabled(), v.lastError)
	}
}

type labelRecorder struct{ labels []string }

func (l *labelRecorder) SetStateLabel(s string) { l.labels = append(l.labels, s) }

func TestStatePresenter_ShowsLatest(t *testing.T) {
	v := &labelRecorder{}
	p := NewStatePresenter(v)
	p.Tick(time.Now())
	if len(v.labels) != 1 || v.labels[0] != "State: idle" {
		t.Fatalf("initial label = %v", v.labels)
	}
	p.OnState(pipeline.StateIdle, pipeline.StateOpening)
	p.OnState(pipeline.StateOpening, pipeline.StateRunning)
	p.Tick(time.Now())
	p.Tick(time.Now())
	if len(v.labels) != 2 || v.labels[1] != "State: running" {
		t.Fatalf("labels = %v", v.labels)
	}
}

type fakeStats struct {
	st    relay.Stats
	state pipeline.State
}

func (f *fakeStats) Stats() relay.Stats     { return f.st }
func (f *fakeStats) State() pipeline.State { return f.state }

type statsRecorder struct {
	session, total time.Duration
	text           string
}

func (s *statsRecorder) SetSession(session, total time.Duration) { s.session, s.total = session, total }
func (s *statsRecorder) SetStats(text string)                    { s.text = text }

func TestStatsPresenter_Formats(t *testing.T) {
	src := &fakeStats{state: pipeline.StateRunning, st: relay.Stats{Submitted: 1500, Dropped: 500, Processed: 1234, Failed: 2}}
	src.st.Process.Average = 3.25
	v := &statsRecorder{}
	p := NewStatsPresenter(model.NewSessionModel(), src, v)
	p.Tick(time.Now())
	for _, want := range []string{"processed 1,234", "dropped 500 (25.0%)", "failed 2", "process 3.25 ms"} {
		if !strings.Contains(v.text, want) {
			t.Fatalf("stats text %q missing %q", v.text, want)
		}
	}
}

type previewRecorder struct {
	previews, details int
	lastPreview       image.Image
	lastDetail        image.Image
}

func (p *previewRecorder) UpdatePreview(img image.Image) { p.previews++; p.lastPreview = img }
func (p *previewRecorder) UpdateDetail(img image.Image)  { p.details++; p.lastDetail = img }

func publish(buf *display.Buffer, seq uint64) {
	img := buf.Back(40, 30)
	for i := range img.Pix {
		img.Pix[i] = uint8(seq)
	}
	buf.Publish(seq)
}

func TestPreviewPresenter_RedrawsOnlyWhenInvalidated(t *testing.T) {
	buf := display.NewBuffer()
	n := display.NewNotifier()
	m := model.NewPreviewModel()
	m.SetEnabled(true)
	v := &previewRecorder{}
	p := NewPreviewPresenter(buf, n.C(), m, v, nil, nil)

	publish(buf, 1)
	p.ProcessFrame()
	if v.previews != 0 {
		t.Fatalf("redrew without an invalidation")
	}
	n.Invalidate()
	p.ProcessFrame()
	p.ProcessFrame()
	if v.previews != 1 {
		t.Fatalf("previews = %d, want 1", v.previews)
	}
	if seq, _ := m.Shown(); seq != 1 {
		t.Fatalf("shown seq = %d", seq)
	}

	// An invalidation without a newer result does not redraw.
	n.Invalidate()
	p.ProcessFrame()
	if v.previews != 1 {
		t.Fatalf("redrew the same sequence")
	}

	publish(buf, 2)
	n.Invalidate()
	p.ProcessFrame()
	if v.previews != 2 {
		t.Fatalf("previews = %d, want 2", v.previews)
	}
	if v.details != 0 {
		t.Fatalf("detail drawn without a region source")
	}
}

func TestPreviewPresenter_DisabledSkips(t *testing.T) {
	buf := display.NewBuffer()
	n := display.NewNotifier()
	m := model.NewPreviewModel()
	v := &previewRecorder{}
	p := NewPreviewPresenter(buf, n.C(), m, v, nil, nil)
	publish(buf, 1)
	n.Invalidate()
	p.ProcessFrame()
	if v.previews != 0 {
		t.Fatalf("disabled preview redrew")
	}
}

func TestPreviewPresenter_Detail(t *testing.T) {
	buf := display.NewBuffer()
	n := display.NewNotifier()
	m := model.NewPreviewModel()
	m.SetEnabled(true)
	v := &previewRecorder{}
	box := image.Rect(10, 10, 20, 20)
	found := true
	p := NewPreviewPresenter(buf, n.C(), m, v, func() (image.Rectangle, bool) { return box, found }, nil)

	img := buf.Back(40, 30)
	img.SetRGBA(15, 15, color.RGBA{255, 0, 0, 255})
	buf.Publish(1)
	n.Invalidate()
	p.ProcessFrame()
	if v.details != 1 || v.lastDetail == nil {
		t.Fatalf("detail not drawn")
	}
	// 10x10 box padded by 8 on each side, clamped to 40x30, then doubled.
	if b := v.lastDetail.Bounds(); b.Dx() != 2*26 || b.Dy() != 2*26 {
		t.Fatalf("detail size %v", b)
	}
	if m.Region() != box {
		t.Fatalf("region not recorded: %v", m.Region())
	}

	found = false
	publish(buf, 2)
	n.Invalidate()
	p.ProcessFrame()
	if v.details != 1 || !m.Region().Empty() {
		t.Fatalf("lost region should clear the detail region")
	}
}
