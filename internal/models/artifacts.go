package models

import "time"

// SignalStyle describes how a plotted signal is drawn.
type SignalStyle struct {
	Color string `json:"color" validate:"hexcolor"`
	Width int    `json:"width" validate:"gte=1,lte=10"`
	Dash  string `json:"dash,omitempty" validate:"omitempty,oneof=solid dash dot"`
}

// LayoutSignal is one signal reference within a plot.
type LayoutSignal struct {
	Name  string      `json:"name" validate:"required,max=200"`
	Style SignalStyle `json:"style"`
}

// LayoutPlot is one chart within a tab; at most 10 signals.
type LayoutPlot struct {
	Name    string         `json:"name" validate:"required,max=200"`
	Signals []LayoutSignal `json:"signals" validate:"max=10"`
}

// LayoutTab groups up to 10 plots; a layout carries 1..20 tabs.
type LayoutTab struct {
	Name  string       `json:"name" validate:"required,max=200"`
	Plots []LayoutPlot `json:"plots" validate:"max=10"`
}

// LayoutBody is the validated shape persisted inside a Layout artifact.
type LayoutBody struct {
	Tabs []LayoutTab `json:"tabs" validate:"required,min=1,max=20"`
}

// Layout is a per-user JSON artifact describing a dashboard of tabs/plots.
type Layout struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId,omitempty"`
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description,omitempty" validate:"max=500"`
	Body        LayoutBody `json:"body"`
	Version     int        `json:"version"`
	IsDemo      bool       `json:"isDemo"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// BlockType enumerates the closed set of script block kinds.
type BlockType string

const (
	BlockSection   BlockType = "section"
	BlockText      BlockType = "text"
	BlockCallout   BlockType = "callout"
	BlockLinePlot  BlockType = "line-plot"
	BlockTable     BlockType = "table"
	BlockMetrics   BlockType = "metrics"
	BlockHistogram BlockType = "histogram"
	BlockScatter   BlockType = "scatter"
	BlockCode      BlockType = "custom-code"
)

// BlockConfig holds the union of fields any block type may carry; unused
// fields for a given Type are ignored. Enum/range fields are validated by
// internal/artifacts against their closed sets.
type BlockConfig struct {
	Level       string         `json:"level,omitempty" validate:"omitempty,oneof=H1 H2 H3"`
	Text        string         `json:"text,omitempty"`
	CalloutType string         `json:"calloutType,omitempty" validate:"omitempty,oneof=info warning success danger"`
	Signals     []string       `json:"signals,omitempty"`
	Columns     int            `json:"columns,omitempty" validate:"omitempty,gte=1,lte=10"`
	Bins        int            `json:"bins,omitempty" validate:"omitempty,gte=1,lte=100"`
	Color       string         `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Code        string         `json:"code,omitempty" validate:"omitempty,max=500000"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// ScriptBlock is one element of a Script's block list.
type ScriptBlock struct {
	Type   BlockType   `json:"type" validate:"required"`
	Config BlockConfig `json:"config"`
}

// ScriptBody is the validated shape persisted inside a Script artifact.
type ScriptBody struct {
	Blocks []ScriptBlock `json:"blocks" validate:"required,max=100"`
}

// Script is a per-user block-based analysis document.
type Script struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId,omitempty"`
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description,omitempty" validate:"max=500"`
	Body        ScriptBody `json:"body"`
	Version     int        `json:"version"`
	IsDemo      bool       `json:"isDemo"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
