package domain

import (
	"strings"
	"time"

	"github.com/fabseal/fabseal/internal/requestid"
)

// Job identifies one delivered queue entry
type Job struct {
	RequestID requestid.ID
	EntryID   string
	Consumer  string
}

// Outcome is what happened to a Job, reported to the optional side channels
// after the entry has been acknowledged
type Outcome struct {
	Job
	Status     Status
	Err        error
	ResultSize int
	Duration   time.Duration
	FinishedAt time.Time
}

// ErrorMessage returns the error text, or "" on success
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RoutingKey returns the event routing key for the outcome status
func (o Outcome) RoutingKey() string {
	return RoutingKeyPrefix + strings.ToLower(string(o.Status))
}
