package view

import (
	"fmt"
	"time"

	"github.com/soocke/framerelay/ui/theme"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// StatusBar shows lifecycle state, run durations, relay counters and the
// last error.
type StatusBar interface {
	SetState(text string)
	SetSession(session, total time.Duration)
	SetStats(text string)
	SetError(msg string)
}

type statusBar struct {
	stateLbl   *TLabelWidget
	sessionLbl *LabelWidget
	totalLbl   *LabelWidget
	statsLbl   *TLabelWidget
	errorLbl   *TLabelWidget
}

// NewStatusBar grids the labels into parent: state and durations on row 0,
// counters on row 1 and errors on row 2.
func NewStatusBar(parent *FrameWidget) StatusBar {
	s := &statusBar{
		stateLbl:   TLabel(Txt("State: idle"), Style(theme.StyleStateLabel)),
		sessionLbl: Label(Width(16), Txt("Session: 00:00")),
		totalLbl:   Label(Width(16), Txt("Total: 00:00")),
		statsLbl:   TLabel(Txt(""), Style(theme.StyleStatsLabel)),
		errorLbl:   TLabel(Txt(""), Style(theme.StyleErrorLabel)),
	}
	Grid(s.stateLbl, In(parent), Row(0), Column(0), Sticky("w"), Padx("0.2m"))
	Grid(s.sessionLbl, In(parent), Row(0), Column(1), Sticky("w"), Padx("0.2m"))
	Grid(s.totalLbl, In(parent), Row(0), Column(2), Sticky("w"), Padx("0.2m"))
	Grid(s.statsLbl, In(parent), Row(1), Column(0), Columnspan(3), Sticky("w"), Padx("0.2m"))
	Grid(s.errorLbl, In(parent), Row(2), Column(0), Columnspan(3), Sticky("w"), Padx("0.2m"))
	return s
}

func (s *statusBar) SetState(text string) {
	if s == nil || s.stateLbl == nil {
		return
	}
	s.stateLbl.Configure(Txt(text))
}

func mmss(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (s *statusBar) SetSession(session, total time.Duration) {
	if s == nil || s.sessionLbl == nil || s.totalLbl == nil {
		return
	}
	s.sessionLbl.Configure(Txt("Session: " + mmss(session)))
	s.totalLbl.Configure(Txt("Total: " + mmss(total)))
}

func (s *statusBar) SetStats(text string) {
	if s == nil || s.statsLbl == nil {
		return
	}
	s.statsLbl.Configure(Txt(text))
}

func (s *statusBar) SetError(msg string) {
	if s == nil || s.errorLbl == nil {
		return
	}
	s.errorLbl.Configure(Txt(msg))
}
