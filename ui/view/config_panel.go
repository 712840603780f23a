package view

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/soocke/framerelay/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel edits the source and relay settings. Changes are written back
// into *config.Config and saved; they take effect on the next start because
// every run builds a fresh source from the config.
type ConfigPanel interface {
	Build(startRow int) (endRow int)
	SetEditable(enabled bool)
	ApplyChanges()
}

type configPanel struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	applyBtn *ButtonWidget
	widgets  map[string]*TextWidget
}

func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(startRow int) (row int) {
	c := v.cfg
	row = startRow
	makeRow := func(id, label, value string) {
		lbl := Label(Txt(label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(16))
		Grid(w, Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		v.widgets[id] = w
		row++
	}
	makeRow("source", "Source (synthetic/screen)", c.Source)
	makeRow("fps", "FPS", fmt.Sprintf("%d", c.FPS))
	makeRow("width", "Width", fmt.Sprintf("%d", c.Width))
	makeRow("height", "Height", fmt.Sprintf("%d", c.Height))
	makeRow("selection", "Selection x,y,w,h", fmt.Sprintf("%d,%d,%d,%d", c.SelectionX, c.SelectionY, c.SelectionW, c.SelectionH))
	makeRow("color", "Color Planes (true/false)", fmt.Sprintf("%t", c.Color))
	makeRow("overlay", "Overlay (true/false)", fmt.Sprintf("%t", c.Overlay))
	makeRow("idleWaitMs", "Idle Wait Ms", fmt.Sprintf("%d", c.IdleWaitMs))
	makeRow("openTimeoutMs", "Open Timeout Ms", fmt.Sprintf("%d", c.OpenTimeoutMs))
	v.applyBtn = Button(Txt("Apply Changes"), Command(func() { v.ApplyChanges() }))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	return row
}

func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, w := range v.widgets {
		if w != nil {
			w.Configure(State(state))
		}
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(State(state))
	}
}

func (v *configPanel) text(id string) (string, bool) {
	w := v.widgets[id]
	if w == nil {
		return "", false
	}
	return strings.TrimSpace(strings.Join(w.Get("1.0", END), "")), true
}

func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	cfg := *v.cfg
	fields := map[string]string{}
	for id := range v.widgets {
		if s, ok := v.text(id); ok {
			fields[id] = s
		}
	}
	if err := cfg.ApplyFields(fields); err != nil {
		if v.logger != nil {
			v.logger.Warn("config field rejected", "error", err)
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		return
	}
	*v.cfg = cfg
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
	} else if v.logger != nil {
		v.logger.Info("config saved", "path", v.cfgPath)
	}
}
