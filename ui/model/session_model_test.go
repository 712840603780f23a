package model

import (
	"math"
	"testing"
	"time"
)

func TestSessionModel_BasicLifecycle(t *testing.T) {
	m := NewSessionModel()
	base := time.Unix(0, 0)

	m.OnTick(true, 0, base)
	m.OnTick(true, 0, base.Add(5*time.Second))
	session, total := m.Values()
	if session != 5*time.Second || total != 5*time.Second {
		t.Fatalf("expected 5s session & total; got session=%v total=%v", session, total)
	}

	m.OnTick(false, 0, base.Add(5*time.Second))
	session, total = m.Values()
	if session != 5*time.Second || total != 5*time.Second {
		t.Fatalf("after stop expected persisted 5s; got session=%v total=%v", session, total)
	}

	// Idle ticks change nothing.
	m.OnTick(false, 0, base.Add(7*time.Second))
	session2, total2 := m.Values()
	if session2 != session || total2 != total {
		t.Fatalf("idle tick changed durations: session=%v total=%v", session2, total2)
	}

	m.OnTick(true, 0, base.Add(10*time.Second))
	m.OnTick(true, 0, base.Add(13*time.Second))
	s3, t3 := m.Values()
	if s3 != 3*time.Second || t3 != 8*time.Second {
		t.Fatalf("second session: session=%v total=%v, want 3s/8s", s3, t3)
	}
}

func TestSessionModel_FPS(t *testing.T) {
	m := NewSessionModel()
	base := time.Unix(100, 0)
	m.OnTick(true, 1000, base)
	if m.FPS() != 0 {
		t.Fatalf("rate before first sample should be 0, got %v", m.FPS())
	}
	m.OnTick(true, 1030, base.Add(time.Second))
	if math.Abs(m.FPS()-30) > 1e-9 {
		t.Fatalf("first sample should set the rate to 30, got %v", m.FPS())
	}
	// Too soon for another sample.
	m.OnTick(true, 1100, base.Add(1100*time.Millisecond))
	if math.Abs(m.FPS()-30) > 1e-9 {
		t.Fatalf("sub-interval tick changed the rate: %v", m.FPS())
	}
	m.OnTick(true, 1090, base.Add(2*time.Second))
	// (1090-1030)/1s = 60 -> 30*0.8 + 60*0.2 = 36
	if math.Abs(m.FPS()-36) > 1e-9 {
		t.Fatalf("smoothed rate = %v, want 36", m.FPS())
	}
	m.OnTick(false, 1090, base.Add(3*time.Second))
	if m.FPS() != 0 {
		t.Fatalf("rate should reset when stopped, got %v", m.FPS())
	}
}
