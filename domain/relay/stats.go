package relay

import "time"

// MovingAverage is an exponentially decaying mean that also tracks the
// largest sample seen. It is owned by a single goroutine.
type MovingAverage struct {
	Average float64 `json:"average"`
	Maximum float64 `json:"maximum"`
	Count   int     `json:"count"`
	Decay   float64 `json:"decay"`
}

// NewMovingAverage returns an empty average. Decay outside (0,1) falls back
// to 0.95.
func NewMovingAverage(decay float64) MovingAverage {
	if decay <= 0 || decay >= 1 {
		decay = 0.95
	}
	return MovingAverage{Decay: decay}
}

// Update folds a sample into the average.
func (m *MovingAverage) Update(sample float64) {
	if m.Count == 0 {
		m.Average = sample
		m.Maximum = sample
	} else {
		m.Average = m.Average*m.Decay + sample*(1-m.Decay)
		if sample > m.Maximum {
			m.Maximum = sample
		}
	}
	m.Count++
}

// Reset clears everything except Decay.
func (m *MovingAverage) Reset() {
	m.Average, m.Maximum, m.Count = 0, 0, 0
}

// timing is a MovingAverage over durations in milliseconds that ignores the
// first warmUp samples.
type timing struct {
	avg     MovingAverage
	warmUp  int
	skipped int
}

func newTiming(decay float64, warmUp int) timing {
	return timing{avg: NewMovingAverage(decay), warmUp: warmUp}
}

func (t *timing) add(d time.Duration) {
	if t.skipped < t.warmUp {
		t.skipped++
		return
	}
	t.avg.Update(float64(d) / float64(time.Millisecond))
}

// Stats is a point-in-time snapshot of relay counters.
type Stats struct {
	Submitted     uint64        `json:"submitted"`
	Dropped       uint64        `json:"dropped"`
	Processed     uint64        `json:"processed"`
	Failed        uint64        `json:"failed"`
	LastSeq       uint64        `json:"last_seq"`
	LastProcessed uint64        `json:"last_processed"`
	Convert       MovingAverage `json:"convert_ms"`
	Process       MovingAverage `json:"process_ms"`
}

// DropRate is the fraction of offered frames that were dropped.
func (s Stats) DropRate() float64 {
	offered := s.Submitted + s.Dropped
	if offered == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(offered)
}
