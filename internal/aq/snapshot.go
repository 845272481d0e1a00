package aq

import "time"

// WatchArea is a named search the scheduler refreshes periodically.
type WatchArea struct {
	Name    string        `json:"name"`
	Request SearchRequest `json:"request"`
}

// Key returns the canonical store key for this area.
func (w WatchArea) Key() string {
	return w.Name
}

// Snapshot is one stored pipeline result for a watched area.
type Snapshot struct {
	ID        string        `json:"id"`
	Area      string        `json:"area"`
	Request   SearchRequest `json:"request"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Result    ResultSet     `json:"result"`
}
