package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the preview window and satisfies the presenter view
// contracts.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	Status      StatusBar
	ConfigPanel ConfigPanel
	Preview     PreviewPane

	ToggleBtn *TButtonWidget
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Build constructs the layout. Handlers are invoked on user actions.
func (rv *RootView) Build(onToggle, onToggleTheme, onExit func()) {
	if rv == nil {
		return
	}
	statusFrame := Frame()
	Grid(statusFrame, Row(0), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	rv.Status = NewStatusBar(statusFrame)

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(4), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	rv.ToggleBtn = TButton(Txt("Start / Stop"), Style(theme.StyleToggleButton), Command(onToggle))
	Grid(rv.ToggleBtn, In(btnFrame), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	themeBtn := Button(Txt("Light / Dark"), Command(onToggleTheme))
	Grid(themeBtn, In(btnFrame), Row(1), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	exitBtn := Button(Txt("Exit"), Command(onExit))
	Grid(exitBtn, In(btnFrame), Row(2), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))

	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	endRow := rv.ConfigPanel.Build(1)
	rv.Preview = NewPreviewPane(endRow)
}

// SetStateLabel implements presenter.StateView.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.Status != nil {
		rv.Status.SetState(text)
	}
}

// SetSession implements presenter.StatsView.
func (rv *RootView) SetSession(session, total time.Duration) {
	if rv != nil && rv.Status != nil {
		rv.Status.SetSession(session, total)
	}
}

// SetStats implements presenter.StatsView.
func (rv *RootView) SetStats(text string) {
	if rv != nil && rv.Status != nil {
		rv.Status.SetStats(text)
	}
}

// SetError implements presenter.RunView.
func (rv *RootView) SetError(msg string) {
	if rv != nil && rv.Status != nil {
		rv.Status.SetError(msg)
	}
}

// ConfigEditable implements presenter.RunView.
func (rv *RootView) ConfigEditable(b bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(b)
	}
}

// PreviewReset implements presenter.RunView.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Reset()
	}
}

// UpdatePreview implements presenter.PreviewView.
func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdatePreview(img)
	}
}

// UpdateDetail implements presenter.PreviewView.
func (rv *RootView) UpdateDetail(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdateDetail(img)
	}
}
