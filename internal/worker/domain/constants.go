package domain

// Status is the terminal state of one delivered queue entry.
type Status string

// Outcome statuses. Every status ends with the entry acknowledged.
const (
	// StatusSucceeded means a result was written under the result key.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the conversion or a store write failed.
	StatusFailed Status = "FAILED"
	// StatusExpired means the image was gone before the worker reached it.
	StatusExpired Status = "EXPIRED"
)

// Table and routing names shared by the outcome side channels.
const (
	OutcomeTable      = "conversion_jobs"
	RoutingKeyPrefix  = "conversion."
	ResultContentType = "model/stl"
)
