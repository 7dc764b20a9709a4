package domain

import "time"

// TimestampLayout is the wire format for every timestamp the API returns.
const TimestampLayout = "2006-01-02T15:04:05Z"

const MaxExternalLink = 255

// TimeRecord is one clock-in/clock-out interval. A nil TimeOut means the
// interval is still open.
type TimeRecord struct {
	ID           int64
	UserID       int64
	DomainID     int64
	CategoryID   int64
	TitleID      int64
	TimeIn       time.Time
	TimeOut      *time.Time
	ExternalLink *string
	Notes        *string

	// Jira sync state
	JiraIssueKey  *string
	JiraWorklogID *string
	JiraSynced    bool
	JiraSyncError *string
	LastSyncedAt  *time.Time
}

// Open reports whether the record has not been clocked out yet.
func (r TimeRecord) Open() bool { return r.TimeOut == nil }

// Duration is the closed interval length, or the time elapsed until now for
// an open record.
func (r TimeRecord) Duration(now time.Time) time.Duration {
	if r.TimeOut != nil {
		return r.TimeOut.Sub(r.TimeIn)
	}
	return now.Sub(r.TimeIn)
}

// Validate checks the interval and length invariants.
func (r TimeRecord) Validate() error {
	if r.TimeIn.IsZero() {
		return Invalid("timein", "is required")
	}
	if r.TimeOut != nil && !r.TimeOut.After(r.TimeIn) {
		return Invalid("timeout", "must be after timein")
	}
	if r.ExternalLink != nil && len(*r.ExternalLink) > MaxExternalLink {
		return Invalid("external_link", "must be at most 255 characters")
	}
	return nil
}
