package artifacts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/fieldtrace/signalstudio/internal/sandbox"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var validDash = map[string]bool{"": true, "solid": true, "dash": true, "dot": true}
var validCalloutTypes = map[string]bool{"info": true, "warning": true, "success": true, "danger": true}
var validHeadingLevels = map[string]bool{"": true, "H1": true, "H2": true, "H3": true}

var validBlockTypes = map[models.BlockType]bool{
	models.BlockSection:   true,
	models.BlockText:      true,
	models.BlockCallout:   true,
	models.BlockLinePlot:  true,
	models.BlockTable:     true,
	models.BlockMetrics:   true,
	models.BlockHistogram: true,
	models.BlockScatter:   true,
	models.BlockCode:      true,
}

func validateNameDescription(name, description string) error {
	if name == "" || len(name) > 100 {
		return apperr.Validation("name is required and must be at most 100 characters")
	}
	if len(description) > 500 {
		return apperr.Validation("description must be at most 500 characters")
	}
	return nil
}

// ValidateLayout enforces the layout shape: 1..20 tabs, each with
// up to 10 plots, each plot with up to 10 styled signals. Any violation
// returns a specific, user-facing validation error.
func ValidateLayout(name, description string, body models.LayoutBody) error {
	if err := validateNameDescription(name, description); err != nil {
		return err
	}
	if len(body.Tabs) == 0 || len(body.Tabs) > 20 {
		return apperr.Validation("layout must have between 1 and 20 tabs")
	}
	for ti, tab := range body.Tabs {
		if tab.Name == "" || len(tab.Name) > 200 {
			return apperr.Validation(fmt.Sprintf("tab %d: name is required and must be at most 200 characters", ti))
		}
		if len(tab.Plots) > 10 {
			return apperr.Validation(fmt.Sprintf("tab %d: at most 10 plots allowed", ti))
		}
		for pi, plot := range tab.Plots {
			if plot.Name == "" || len(plot.Name) > 200 {
				return apperr.Validation(fmt.Sprintf("tab %d plot %d: name is required and must be at most 200 characters", ti, pi))
			}
			if len(plot.Signals) > 10 {
				return apperr.Validation(fmt.Sprintf("tab %d plot %d: at most 10 signals allowed", ti, pi))
			}
			for si, sig := range plot.Signals {
				if sig.Name == "" || len(sig.Name) > 200 {
					return apperr.Validation(fmt.Sprintf("tab %d plot %d signal %d: name is required", ti, pi, si))
				}
				if !hexColorPattern.MatchString(sig.Style.Color) {
					return apperr.Validation(fmt.Sprintf("tab %d plot %d signal %d: color must match #RRGGBB", ti, pi, si))
				}
				if sig.Style.Width < 1 || sig.Style.Width > 10 {
					return apperr.Validation(fmt.Sprintf("tab %d plot %d signal %d: width must be between 1 and 10", ti, pi, si))
				}
				if !validDash[sig.Style.Dash] {
					return apperr.Validation(fmt.Sprintf("tab %d plot %d signal %d: dash must be solid, dash, or dot", ti, pi, si))
				}
			}
		}
	}
	return nil
}

// ValidateScript enforces the script shape: up to 100 blocks
// from a closed type set, per-type enum/range/color checks, and a static
// AST safety check for custom-code blocks via the sandbox validator.
func ValidateScript(name, description string, body models.ScriptBody) error {
	if err := validateNameDescription(name, description); err != nil {
		return err
	}
	if len(body.Blocks) == 0 || len(body.Blocks) > 100 {
		return apperr.Validation("script must have between 1 and 100 blocks")
	}
	for i, blk := range body.Blocks {
		if !validBlockTypes[blk.Type] {
			return apperr.Validation(fmt.Sprintf("block %d: unknown type %q", i, blk.Type))
		}
		cfg := blk.Config
		switch blk.Type {
		case models.BlockSection:
			if !validHeadingLevels[cfg.Level] {
				return apperr.Validation(fmt.Sprintf("block %d: level must be H1, H2, or H3", i))
			}
		case models.BlockCallout:
			if !validCalloutTypes[cfg.CalloutType] {
				return apperr.Validation(fmt.Sprintf("block %d: callout type must be info, warning, success, or danger", i))
			}
		case models.BlockTable:
			if cfg.Columns != 0 && (cfg.Columns < 1 || cfg.Columns > 10) {
				return apperr.Validation(fmt.Sprintf("block %d: columns must be between 1 and 10", i))
			}
		case models.BlockHistogram:
			if cfg.Bins != 0 && (cfg.Bins < 1 || cfg.Bins > 100) {
				return apperr.Validation(fmt.Sprintf("block %d: bins must be between 1 and 100", i))
			}
		case models.BlockLinePlot, models.BlockScatter:
			if cfg.Color != "" && !hexColorPattern.MatchString(cfg.Color) {
				return apperr.Validation(fmt.Sprintf("block %d: color must match #RRGGBB", i))
			}
		case models.BlockCode:
			result, err := sandbox.Validate(cfg.Code)
			if err != nil {
				return apperr.Internal(err)
			}
			if !result.Safe {
				return apperr.Unsafe(fmt.Sprintf("block %d: %s", i, strings.Join(result.Errors, "; ")))
			}
		}
	}
	return nil
}
