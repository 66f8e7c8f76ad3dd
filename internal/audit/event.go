package audit

import "time"

// SearchCompletionEvent is the wire payload SPEC_FULL.md section 3.2
// publishes to the audit topic once per SearchEvents/SearchMessages call,
// win or lose: success, a terminal error, or a client disconnect all reach
// here with the fields they have at that point.
type SearchCompletionEvent struct {
	SearchId          string    `json:"searchId"`
	Direction         string    `json:"direction"`
	StreamCount       int       `json:"streamCount"`
	EmittedCount      int       `json:"emittedCount"`
	ResumeFromId      string    `json:"resumeFromId,omitempty"`
	DurationMs        int64     `json:"durationMs"`
	TerminalErrorKind string    `json:"terminalErrorKind,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
