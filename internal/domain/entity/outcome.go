package entity

// OutcomeStatus tags the terminal result of processing one change event.
type OutcomeStatus string

const (
	// OutcomeSent means the push gateway accepted the message.
	OutcomeSent OutcomeStatus = "sent"
	// OutcomeSkipped means no push was attempted; an expected steady-state
	// condition, not a failure.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFailed means the attempt was made and rejected.
	OutcomeFailed OutcomeStatus = "failed"
)

// Skip reasons surfaced in outcomes and delivery logs.
const (
	SkipReasonNoToken  = "no fcm token"
	SkipReasonDisabled = "notifications disabled"
)

// PushOutcome is the tagged result of one delivery attempt.
type PushOutcome struct {
	Status      OutcomeStatus
	MessageID   string // Set on sent outcomes when the gateway returned one.
	SkipReason  string // Set on skipped outcomes.
	ErrorDetail string // Set on failed outcomes: gateway status and body, or the credential error.
}

// SentOutcome builds a sent result. messageID may be empty.
func SentOutcome(messageID string) *PushOutcome {
	return &PushOutcome{Status: OutcomeSent, MessageID: messageID}
}

// SkippedOutcome builds a non-error skip result.
func SkippedOutcome(reason string) *PushOutcome {
	return &PushOutcome{Status: OutcomeSkipped, SkipReason: reason}
}

// FailedOutcome builds a failed result carrying the upstream detail.
func FailedOutcome(detail string) *PushOutcome {
	return &PushOutcome{Status: OutcomeFailed, ErrorDetail: detail}
}
