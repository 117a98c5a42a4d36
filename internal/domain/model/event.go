// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// ActionKind is the closed set of visitor actions the pipeline accepts.
type ActionKind string

const (
	ActionView     ActionKind = "view"
	ActionClick    ActionKind = "click"
	ActionScroll   ActionKind = "scroll"
	ActionDownload ActionKind = "download"
	ActionShare    ActionKind = "share"
)

// ParseAction validates a wire-level action string against the closed set.
func ParseAction(s string) (ActionKind, error) {
	switch ActionKind(s) {
	case ActionView, ActionClick, ActionScroll, ActionDownload, ActionShare:
		return ActionKind(s), nil
	default:
		return "", fmt.Errorf("unsupported action kind %q", s)
	}
}

// Event is one immutable, accepted visitor action.
//
// VisitorID is the pseudonymous identifier produced by the anonymizer; the
// raw identifier supplied by the caller is never stored on this type.
type Event struct {
	ID        string     // uuid assigned at ingestion
	TokenID   string     // originating origin token
	Action    ActionKind // closed set, validated at the boundary
	Path      string     // resource path the action targeted
	VisitorID string     // pseudonymous visitor identifier
	TS        time.Time  // server-assigned at persistence time, UTC
}

// ResourceCount is one row of a top-resources aggregate.
type ResourceCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// Stats is the aggregate bundle served to the dashboard poller.
type Stats struct {
	TotalCount     int64           `json:"total_count"`
	UniqueVisitors int64           `json:"unique_visitors"`
	RecentCount    int64           `json:"recent_count"`
	TopResources   []ResourceCount `json:"top_resources"`
}
