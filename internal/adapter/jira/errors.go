package jira

import (
	"log/slog"
	"strings"
	"time"
	"unicode"

	"timecard/internal/domain"
)

// ErrorType groups tracker failures for display.
type ErrorType string

const (
	ErrAuthentication ErrorType = "authentication"
	ErrPermission     ErrorType = "permission"
	ErrNotFound       ErrorType = "not_found"
	ErrRateLimit      ErrorType = "rate_limit"
	ErrConnection     ErrorType = "connection"
	ErrValidation     ErrorType = "validation"
	ErrDuplicate      ErrorType = "duplicate"
	ErrGeneral        ErrorType = "general"
)

// Classification is a tracker error mapped to user-facing text.
type Classification struct {
	Type        ErrorType
	Message     string
	UserMessage string
}

// ParseError classifies err by substring match on its lowercased text.
// The first matching rule wins.
func ParseError(err error) Classification {
	raw := err.Error()
	s := strings.ToLower(raw)
	has := func(subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}

	switch {
	case has("unauthorized", "401"):
		return Classification{ErrAuthentication,
			"Invalid JIRA credentials. Please check your email and API token.",
			"Authentication failed. Your JIRA credentials may be incorrect or expired."}
	case has("forbidden", "403"):
		return Classification{ErrPermission,
			"Insufficient permissions to perform this action.",
			"You do not have permission to log time on this JIRA issue. Please check your JIRA project permissions."}
	case has("not found", "404"):
		return Classification{ErrNotFound,
			"JIRA issue or resource not found.",
			"The JIRA issue was not found. It may have been deleted or you may not have access to it."}
	case has("rate limit", "429"):
		return Classification{ErrRateLimit,
			"JIRA API rate limit exceeded.",
			"Too many requests to JIRA. Please wait a few minutes and try again."}
	case has("connection", "timeout", "network", "unreachable"):
		return Classification{ErrConnection,
			"Failed to connect to JIRA.",
			"Could not connect to JIRA. Please check your internet connection and JIRA URL."}
	case has("invalid", "required"):
		return Classification{ErrValidation,
			"Invalid data provided.",
			"The data provided is invalid. Please check all required fields."}
	case has("duplicate", "already exists"):
		return Classification{ErrDuplicate,
			"Worklog may already exist.",
			"This time entry may already be synced to JIRA."}
	}
	short := raw
	if r := []rune(raw); len(r) > 200 {
		short = string(r[:200])
	}
	return Classification{ErrGeneral, raw, "An error occurred: " + short}
}

// ValidateIssueKey checks the PROJECT-123 shape.
func ValidateIssueKey(key string) error {
	if key == "" {
		return &domain.ValidationError{Message: "Issue key cannot be empty"}
	}
	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return &domain.ValidationError{Message: "Issue key must be in format: PROJECT-123"}
	}
	if !isUpper(parts[0]) {
		return &domain.ValidationError{Message: "Project key must be uppercase"}
	}
	if !isDigits(parts[1]) {
		return &domain.ValidationError{Message: "Issue number must be numeric"}
	}
	return nil
}

// isUpper requires at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateForSync checks that r is complete enough to attempt a sync.
// Records longer than a day are allowed but logged. The worklog itself is
// checked by ValidateWorklog.
func ValidateForSync(r domain.TimeRecord, log *slog.Logger) error {
	if r.JiraIssueKey == nil || *r.JiraIssueKey == "" {
		return &domain.ValidationError{Message: "Time record must have a JIRA issue linked"}
	}
	if r.TimeIn.IsZero() {
		return &domain.ValidationError{Message: "Time record must have a start time"}
	}
	if r.TimeOut == nil {
		return &domain.ValidationError{Message: "Time record must have an end time (clock out required)"}
	}
	if !r.TimeOut.After(r.TimeIn) {
		return &domain.ValidationError{Message: "End time must be after start time"}
	}
	if d := r.TimeOut.Sub(r.TimeIn); d > 24*time.Hour {
		log.Warn("time record longer than 24h",
			slog.Int64("record_id", r.ID), slog.Duration("duration", d))
	}
	return nil
}

// ValidateWorklog checks a worklog before it is sent.
func ValidateWorklog(key string, seconds int64) error {
	if err := ValidateIssueKey(key); err != nil {
		return err
	}
	if seconds < 60 {
		return &domain.ValidationError{Message: "Time entry must be at least 1 minute"}
	}
	return nil
}
