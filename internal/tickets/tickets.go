// Package tickets defines the contract the bot expects from a ticketing
// backend, the result shapes it returns, and an in-memory implementation
// used for local runs and tests.
package tickets

import (
	"context"
)

// Default values the backend applies to new tickets.
const (
	StatusOpen = "Open"
)

// Service is a ticketing backend.
//
// A returned error means the call itself failed (transport, timeout,
// decoding). A result with Success == false is a failure reported by the
// backend and carries a user-facing Error.
type Service interface {
	CreateTicket(ctx context.Context, req CreateRequest) (*CreationResult, error)
	QueryTicket(ctx context.Context, idOrQuery string) (*QueryResult, error)
}

// CreateRequest carries the fields of a ticket to create.
type CreateRequest struct {
	Summary     string
	Description string
	IssueType   string
	ProjectID   string // optional
	Reporter    string // optional chat user id of the requester
}

// CreationResult is the outcome of CreateTicket.
type CreationResult struct {
	Success  bool           `json:"success"`
	TicketID string         `json:"ticketId,omitempty"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Details  *TicketDetails `json:"details,omitempty"`
}

// TicketDetails echoes the fields a ticket was created with.
type TicketDetails struct {
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	IssueType   string  `json:"issueType"`
	ProjectID   *string `json:"projectId"`
	Status      string  `json:"status"`
}

// Record is a ticket as returned by a lookup or search.
type Record struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Assignee    string `json:"assignee,omitempty"`
	Reporter    string `json:"reporter,omitempty"`
}

// QueryResult is the outcome of QueryTicket.
type QueryResult struct {
	Success bool
	Data    *QueryData
	Message string
	Error   string
}

// QueryData holds either one record (an id lookup) or an ordered list of
// records (a search). A nil *QueryData means the backend returned no data.
type QueryData struct {
	record  *Record
	records []Record
	list    bool
}

// SingleRecord wraps the result of an id lookup.
func SingleRecord(r Record) *QueryData {
	return &QueryData{record: &r}
}

// RecordList wraps search results. The slice is copied.
func RecordList(rs []Record) *QueryData {
	cp := make([]Record, len(rs))
	copy(cp, rs)
	return &QueryData{records: cp, list: true}
}

// IsList reports whether the data came from a search.
func (d *QueryData) IsList() bool { return d != nil && d.list }

// Record returns the single record, or nil for list data.
func (d *QueryData) Record() *Record {
	if d == nil || d.list {
		return nil
	}
	return d.record
}

// Records returns the search results, or nil for single-record data.
func (d *QueryData) Records() []Record {
	if d == nil || !d.list {
		return nil
	}
	return d.records
}

// optional returns nil for an empty string so that JSON renders null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
