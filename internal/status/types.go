package status

import "time"

// PassPhase represents the phase of the most recent batch pass
type PassPhase string

const (
	// PassPhaseIdle means no pass has run since startup
	PassPhaseIdle PassPhase = "Idle"

	// PassPhaseRunning means a pass is currently in progress
	PassPhaseRunning PassPhase = "Running"

	// PassPhaseComplete means the last pass completed
	PassPhaseComplete PassPhase = "Complete"

	// PassPhaseFailed means the last pass could not read or re-arm the durable state
	PassPhaseFailed PassPhase = "Failed"
)

// PassCounts are the per-entity outcomes of one pass
type PassCounts struct {
	Read      int  `json:"read"`
	Processed int  `json:"processed"`
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Retained  int  `json:"retained"`
	Rearmed   bool `json:"rearmed"`
}

// PassStatus describes the most recent batch pass of a shard
type PassStatus struct {
	// Phase represents the current pass phase
	Phase PassPhase `json:"phase"`

	// Message provides additional information about the pass
	Message string `json:"message,omitempty"`

	// LastAttempt is the start time of the last pass
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is the completion time of the last pass that did not fail
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// ConsecutiveFailures is the number of failed passes since the last success
	ConsecutiveFailures int `json:"consecutiveFailures,omitempty"`

	// PassCount is the number of passes run by this process
	PassCount int64 `json:"passCount,omitempty"`

	// Last holds the outcome counts of the last completed pass
	Last *PassCounts `json:"last,omitempty"`
}
