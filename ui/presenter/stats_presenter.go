package presenter

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/framerelay/domain/pipeline"
	"github.com/soocke/framerelay/domain/relay"
	"github.com/soocke/framerelay/ui/model"
)

// StatsSource is the read side of the pipeline used for the stats label.
type StatsSource interface {
	Stats() relay.Stats
	State() pipeline.State
}

// StatsView displays run durations and relay counters.
type StatsView interface {
	SetSession(session, total time.Duration)
	SetStats(text string)
}

// StatsPresenter formats relay statistics and session durations.
type StatsPresenter struct {
	sess *model.SessionModel
	src  StatsSource
	view StatsView
}

func NewStatsPresenter(sess *model.SessionModel, src StatsSource, view StatsView) *StatsPresenter {
	return &StatsPresenter{sess: sess, src: src, view: view}
}

// Tick advances the session model and pushes values to the view.
func (p *StatsPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.src == nil || p.view == nil {
		return
	}
	st := p.src.Stats()
	p.sess.OnTick(p.src.State() == pipeline.StateRunning, st.Processed, now)
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
	p.view.SetStats(FormatStats(st, p.sess.FPS()))
}

// FormatStats renders relay counters on one line.
func FormatStats(st relay.Stats, fps float64) string {
	return fmt.Sprintf("processed %s  dropped %s (%.1f%%)  failed %s  |  convert %.2f ms  process %.2f ms  |  %.1f fps",
		humanize.Comma(int64(st.Processed)),
		humanize.Comma(int64(st.Dropped)),
		st.DropRate()*100,
		humanize.Comma(int64(st.Failed)),
		st.Convert.Average,
		st.Process.Average,
		fps,
	)
}
