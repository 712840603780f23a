package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyFields parses form text keyed by field id into c. Empty values keep
// the current setting. Nothing is validated beyond parsing; call Validate
// afterwards.
func (c *Config) ApplyFields(fields map[string]string) error {
	ints := map[string]*int{
		"fps":           &c.FPS,
		"width":         &c.Width,
		"height":        &c.Height,
		"idleWaitMs":    &c.IdleWaitMs,
		"openTimeoutMs": &c.OpenTimeoutMs,
	}
	for id, dst := range ints {
		s := strings.TrimSpace(fields[id])
		if s == "" {
			continue
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("config: %s: not an integer: %q", id, s)
		}
		*dst = i
	}
	bools := map[string]*bool{"color": &c.Color, "overlay": &c.Overlay}
	for id, dst := range bools {
		s := strings.TrimSpace(fields[id])
		if s == "" {
			continue
		}
		b, ok := parseBoolLoose(s)
		if !ok {
			return fmt.Errorf("config: %s: not a boolean: %q", id, s)
		}
		*dst = b
	}
	if s := strings.TrimSpace(fields["source"]); s != "" {
		c.Source = strings.ToLower(s)
	}
	if s := strings.TrimSpace(fields["selection"]); s != "" {
		parts := strings.Split(s, ",")
		if len(parts) != 4 {
			return fmt.Errorf("config: selection: want x,y,w,h, got %q", s)
		}
		var vals [4]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return fmt.Errorf("config: selection: not an integer: %q", p)
			}
			vals[i] = n
		}
		c.SelectionX, c.SelectionY, c.SelectionW, c.SelectionH = vals[0], vals[1], vals[2], vals[3]
	}
	return nil
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
