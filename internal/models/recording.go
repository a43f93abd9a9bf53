package models

import "time"

// Signal is one channel of a recording session: identifying metadata
// always present, sample arrays only once loaded.
type Signal struct {
	Index        int       `json:"index"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	Color        string    `json:"color"`
	Group        int       `json:"-"`
	ChannelIndex int       `json:"-"`
	Loaded       bool      `json:"loaded"`
	Computed     bool      `json:"computed,omitempty"`
	Formula      string    `json:"formula,omitempty"`
	Timestamps   []float64 `json:"-"`
	Values       []float64 `json:"-"`
}

// TimeRange is a cached global [t_min, t_max] for a session.
type TimeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SignalSummary is the metadata-only view returned by list_signals.
type SignalSummary struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Color    string `json:"color"`
	Loaded   bool   `json:"loaded"`
	Computed bool   `json:"computed,omitempty"`
}

// SessionInfo is the public shape of a recording session: id, owner,
// cached time range, and last-access bookkeeping.
type SessionInfo struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	TimeRange  TimeRange `json:"timeRange"`
	SignalCount int      `json:"signalCount"`
	CreatedAt  time.Time `json:"createdAt"`
	LastAccess time.Time `json:"lastAccess"`
}

// SignalView is one signal's slice of a view response.
type SignalView struct {
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	Color          string    `json:"color"`
	Timestamps     []float64 `json:"timestamps"`
	Values         []float64 `json:"values"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	OriginalPoints int       `json:"originalPoints"`
	ReturnedPoints int       `json:"returnedPoints"`
	IsComplete     bool      `json:"isComplete"`
}

// ViewResponse is the aggregate response envelope for a view request.
type ViewResponse struct {
	Signals        []SignalView `json:"signals"`
	OriginalPoints int          `json:"originalPoints"`
	ReturnedPoints int          `json:"returnedPoints"`
}
