package base

import (
	"github.com/fatih/color"

	"github.com/go-lynx/scf"
)

// ColorState renders a plugin state for terminal tables.
func ColorState(s scf.PluginState) string {
	switch s {
	case scf.StateLoaded:
		return color.GreenString(s.String())
	case scf.StateFailed:
		return color.RedString(s.String())
	case scf.StateLoading:
		return color.YellowString(s.String())
	}
	return color.HiBlackString(s.String())
}
