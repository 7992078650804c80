package model

import "fmt"

// Condition classifies a recoverable pipeline event.
type Condition string

const (
	ConditionSourceUnavailable Condition = "source_unavailable"
	ConditionParseFailure      Condition = "parse_failure"
	ConditionInsufficientData  Condition = "insufficient_data"
	ConditionModelFailure      Condition = "model_failure"
	ConditionJoinMismatch      Condition = "join_mismatch"
	ConditionNoGeo             Condition = "no_geo"
)

// Warning is a recoverable condition reported by a stage. Warnings degrade
// functionality but never abort a run.
type Warning struct {
	Stage     string    `json:"stage"`
	Condition Condition `json:"condition"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s: %s", w.Stage, w.Condition, w.Message)
	}
	return fmt.Sprintf("%s: %s (%s): %s", w.Stage, w.Condition, w.Subject, w.Message)
}
