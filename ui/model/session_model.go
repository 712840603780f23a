package model

import (
	"time"
)

// SessionModel tracks how long the pipeline has been running and the
// processed-frame rate of the current run. It is decoupled from the UI;
// presenters poll Values and FPS and push them to views. The zero value is
// ready to use.
type SessionModel struct {
	active              bool
	runStart            time.Time
	lastSessionDuration time.Duration
	accumulated         time.Duration

	lastProcessed uint64
	lastSample    time.Time
	fps           float64
}

// fpsDecay weights the previous rate estimate.
const fpsDecay = 0.8

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick updates the model from the running flag and the processed-frame
// counter of the current run.
func (m *SessionModel) OnTick(running bool, processed uint64, now time.Time) {
	if m == nil {
		return
	}
	if running {
		if !m.active { // off -> on
			m.active = true
			m.runStart = now
			m.lastSessionDuration = 0
			m.lastProcessed = processed
			m.lastSample = now
			m.fps = 0
		}
		m.lastSessionDuration = now.Sub(m.runStart)
		m.sampleRate(processed, now)
		return
	}
	if m.active { // on -> off
		m.lastSessionDuration = now.Sub(m.runStart)
		m.accumulated += m.lastSessionDuration
		m.active = false
		m.fps = 0
	}
}

func (m *SessionModel) sampleRate(processed uint64, now time.Time) {
	dt := now.Sub(m.lastSample)
	if dt < 250*time.Millisecond {
		return
	}
	var delta uint64
	if processed >= m.lastProcessed {
		delta = processed - m.lastProcessed
	}
	rate := float64(delta) / dt.Seconds()
	if m.fps == 0 {
		m.fps = rate
	} else {
		m.fps = m.fps*fpsDecay + rate*(1-fpsDecay)
	}
	m.lastProcessed = processed
	m.lastSample = now
}

// Values returns the current session duration and the total accumulated
// duration. The total includes the ongoing session when active.
func (m *SessionModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	session = m.lastSessionDuration
	total = m.accumulated
	if m.active {
		total += session
	}
	return
}

// FPS is the smoothed processed-frame rate, 0 when not running.
func (m *SessionModel) FPS() float64 {
	if m == nil {
		return 0
	}
	return m.fps
}
