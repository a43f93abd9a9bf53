package sandbox

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

var (
	blockSanitizer     *bluemonday.Policy
	blockSanitizerOnce sync.Once
)

func sanitizer() *bluemonday.Policy {
	blockSanitizerOnce.Do(func() { blockSanitizer = bluemonday.StrictPolicy() })
	return blockSanitizer
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var validCalloutTypes = map[string]bool{"info": true, "warning": true, "success": true, "danger": true}
var validHeadingLevels = map[string]bool{"H1": true, "H2": true, "H3": true}

// RenderBlocks turns a validated ScriptBody into generated source text,
// one rendered section per block, in document order. custom-code blocks
// are revalidated by the static AST stage before their code is included
// verbatim; a failing revalidation aborts generation rather than
// embedding unsafe code.
func RenderBlocks(body models.ScriptBody) (string, error) {
	var out strings.Builder
	for i, blk := range body.Blocks {
		rendered, err := renderBlock(blk)
		if err != nil {
			return "", fmt.Errorf("block %d: %w", i, err)
		}
		out.WriteString(rendered)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func renderBlock(blk models.ScriptBlock) (string, error) {
	cfg := blk.Config
	switch blk.Type {
	case models.BlockSection:
		level := cfg.Level
		if level == "" {
			level = "H2"
		}
		if !validHeadingLevels[level] {
			return "", apperr.Validation(fmt.Sprintf("section level %q is not one of H1,H2,H3", level))
		}
		return fmt.Sprintf("## %s %s\n", level, escapeText(sanitizeText(cfg.Text))), nil

	case models.BlockText:
		return escapeText(sanitizeText(cfg.Text)) + "\n", nil

	case models.BlockCallout:
		if !validCalloutTypes[cfg.CalloutType] {
			return "", apperr.Validation(fmt.Sprintf("callout type %q is not allowed", cfg.CalloutType))
		}
		return fmt.Sprintf("> [!%s] %s\n", strings.ToUpper(cfg.CalloutType), escapeText(sanitizeText(cfg.Text))), nil

	case models.BlockLinePlot, models.BlockScatter:
		return renderSignalBlock(string(blk.Type), cfg)

	case models.BlockTable:
		columns := clampInt(cfg.Columns, 1, 10)
		return fmt.Sprintf("[table columns=%d signals=%s]\n", columns, escapeText(strings.Join(cfg.Signals, ","))), nil

	case models.BlockMetrics:
		return fmt.Sprintf("[metrics signals=%s]\n", escapeText(strings.Join(cfg.Signals, ","))), nil

	case models.BlockHistogram:
		bins := clampInt(cfg.Bins, 1, 100)
		return fmt.Sprintf("[histogram bins=%d signals=%s]\n", bins, escapeText(strings.Join(cfg.Signals, ","))), nil

	case models.BlockCode:
		validation, err := Validate(cfg.Code)
		if err != nil {
			return "", apperr.Internal(err)
		}
		if !validation.Safe {
			return "", apperr.Unsafe(strings.Join(validation.Errors, "; "))
		}
		return "```python\n" + cfg.Code + "\n```\n", nil

	default:
		return "", apperr.Validation(fmt.Sprintf("unknown block type %q", blk.Type))
	}
}

func renderSignalBlock(kind string, cfg models.BlockConfig) (string, error) {
	if cfg.Color != "" && !hexColorPattern.MatchString(cfg.Color) {
		return "", apperr.Validation(fmt.Sprintf("color %q must match #RRGGBB", cfg.Color))
	}
	return fmt.Sprintf("[%s color=%s signals=%s]\n", kind, cfg.Color, escapeText(strings.Join(cfg.Signals, ","))), nil
}

func clampInt(v, lo, hi int) int {
	if v == 0 {
		v = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitizeText strips any HTML smuggled into a free-text field before
// it reaches escapeText.
func sanitizeText(s string) string {
	return sanitizer().Sanitize(s)
}

// escapeText escapes quote, backslash, and the CR/LF/tab whitespace
// that would otherwise break the rendered block's single-line framing.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\r", `\r`,
		"\n", `\n`,
		"\t", `\t`,
	)
	return r.Replace(s)
}
