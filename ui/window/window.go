// Package window runs the Tk preview window on top of an app.Container.
package window

import (
	"fmt"
	"time"

	tk "modernc.org/tk9.0"

	"github.com/soocke/framerelay/app"
	"github.com/soocke/framerelay/ui/model"
	"github.com/soocke/framerelay/ui/presenter"
	"github.com/soocke/framerelay/ui/theme"
	"github.com/soocke/framerelay/ui/view"
)

const tick = 50 * time.Millisecond

// Window owns the Tk widgets and the presenter loop. All methods run on the
// Tk goroutine.
type Window struct {
	c       *app.Container
	width   int
	height  int
	afterID string

	root    *view.RootView
	preview *model.PreviewModel
	run     *presenter.RunPresenter
	loop    *presenter.Loop
}

// runView resets the preview model together with the preview widgets.
type runView struct {
	*view.RootView
	preview *presenter.PreviewPresenter
}

func (v runView) PreviewReset() {
	v.preview.Reset()
	v.RootView.PreviewReset()
}

func New(title string, width, height int, c *app.Container) *Window {
	w := &Window{c: c, width: width, height: height}
	tk.App.WmTitle(title)
	tk.WmProtocol(tk.App, "WM_DELETE_WINDOW", w.exitHandler)
	tk.WmGeometry(tk.App, fmt.Sprintf("%dx%d+100+100", width, height))
	return w
}

// Run builds the layout and blocks in the Tk event loop until the window
// closes.
func (w *Window) Run() {
	theme.InitStyles()
	w.root = view.NewRootView(w.c.Config, w.c.ConfigPath, w.c.Logger)
	w.preview = model.NewPreviewModel()

	previewP := presenter.NewPreviewPresenter(w.c.Display, w.c.Preview.C(), w.preview, w.root, w.c.Region, w.c.Logger)
	w.run = presenter.NewRunPresenter(w.preview, w.c.Pipeline, runView{RootView: w.root, preview: previewP}, w.c.Logger)
	stateP := presenter.NewStatePresenter(w.root)
	w.c.Pipeline.AddListener(stateP.OnState)
	statsP := presenter.NewStatsPresenter(model.NewSessionModel(), w.c.Pipeline, w.root)
	w.loop = presenter.NewLoop(w.run, stateP, statsP, previewP, w.scheduleUpdate)

	w.root.Build(w.run.Toggle, func() { theme.SetDark(!theme.IsDark()) }, w.exitHandler)

	w.scheduleUpdate()
	tk.App.Wait()
}

func (w *Window) scheduleUpdate() {
	w.afterID = tk.TclAfter(tick, func() { w.loop.Tick() })
}

func (w *Window) exitHandler() {
	if w.afterID != "" {
		tk.TclAfterCancel(w.afterID)
	}
	if w.run != nil {
		w.run.Disable()
	}
	tk.Destroy(tk.App)
}
