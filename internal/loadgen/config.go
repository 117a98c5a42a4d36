// Package loadgen fires synthetic visitor events at a running quill
// instance and checks that the aggregate surface moves accordingly.
package loadgen

import "time"

// Config holds configuration for one load run.
type Config struct {
	BaseURL     string        // base URL of the service
	TokenID     string        // origin token id presented on every call
	TokenSecret string        // origin secret presented on every call
	NumEvents   int           // number of events to generate
	Workers     int           // number of concurrent submitters
	Visitors    int           // size of the synthetic visitor pool
	Timeout     time.Duration // HTTP request timeout
	Verbose     bool          // log every rejection
}

// event is the wire shape of POST /events.
type event struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Visitor string `json:"visitor"`
}

// statsResponse mirrors GET /stats.
type statsResponse struct {
	TotalCount     int64 `json:"total_count"`
	UniqueVisitors int64 `json:"unique_visitors"`
	RecentCount    int64 `json:"recent_count"`
	TopResources   []struct {
		Path  string `json:"path"`
		Count int64  `json:"count"`
	} `json:"top_resources"`
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Accepted    int
	RateLimited int
	Rejected    int
	StartTime   time.Time
	Duration    time.Duration
}
