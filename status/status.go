// Package status defines the per-store StoreStatus record (spec.md §3.1,
// §4.6) published by the network status monitor and surfaced on the
// external store-consumer interface.
package status

import "time"

// ConnectionState describes the push-adapter connection lifecycle, used by
// status.Status.ConnectionStatus (spec.md §7 "Push errors update
// status.connectionStatus").
type ConnectionState string

const (
	ConnectionUnknown      ConnectionState = ""
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionClosed       ConnectionState = "closed"
)

// Status is the small, immutable-by-convention record describing a store's
// current health (spec.md §3.1 "Store status").
type Status struct {
	IsLoading        bool
	IsRevalidating   bool
	IsOffline        bool
	Error            error
	LastUpdated      time.Time
	ConnectionStatus ConnectionState
}

// Partial carries the subset of fields a caller wants to merge into the
// current status via Monitor.SetStatus (spec.md §4.3 "setStatus(partial)
// merges into the current status record"). A nil field is left unchanged;
// to explicitly clear Error, set ClearError.
type Partial struct {
	IsLoading        *bool
	IsRevalidating   *bool
	IsOffline        *bool
	Error            error
	ClearError       bool
	LastUpdated      *time.Time
	ConnectionStatus *ConnectionState
}

// Merge applies p on top of s and returns the result; s is left unmodified.
func (s Status) Merge(p Partial) Status {
	out := s
	if p.IsLoading != nil {
		out.IsLoading = *p.IsLoading
	}
	if p.IsRevalidating != nil {
		out.IsRevalidating = *p.IsRevalidating
	}
	if p.IsOffline != nil {
		out.IsOffline = *p.IsOffline
	}
	if p.ClearError {
		out.Error = nil
	} else if p.Error != nil {
		out.Error = p.Error
	}
	if p.LastUpdated != nil {
		out.LastUpdated = *p.LastUpdated
	}
	if p.ConnectionStatus != nil {
		out.ConnectionStatus = *p.ConnectionStatus
	}
	return out
}

func BoolPtr(b bool) *bool                         { return &b }
func TimePtr(t time.Time) *time.Time                { return &t }
func ConnPtr(c ConnectionState) *ConnectionState     { return &c }
