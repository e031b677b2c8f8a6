// Package capability adapts the model-backed analyze/transform/verify/diagnose
// capabilities behind typed values. Callers never see raw model output: every
// response is parsed at this boundary into a ChangePlan, Candidate, or Verdict,
// and anything that cannot be parsed surfaces as ErrUnparseable.
package capability

import (
	"errors"
	"fmt"
)

// ErrUnparseable indicates a capability response that could not be decoded
// into the expected shape. Callers treat it like any other capability error.
var ErrUnparseable = errors.New("unparseable capability response")

// ChangePlan describes what should change in an artifact and why. Plans come
// from Analyze on the first attempt and from Diagnose on retries.
type ChangePlan struct {
	Summary      string   `json:"summary"`
	Reason       string   `json:"reason"`
	Instructions []string `json:"instructions"`
	Refined      bool     `json:"refined,omitempty"`
}

// Empty reports whether the plan carries no usable guidance.
func (p *ChangePlan) Empty() bool {
	return p == nil || (p.Summary == "" && p.Reason == "" && len(p.Instructions) == 0)
}

// Candidate is a full replacement body for an artifact. Candidates are
// immutable; a retry produces a new Candidate.
type Candidate struct {
	Content string `json:"content"`
	Notes   string `json:"notes,omitempty"`
	Attempt int    `json:"attempt"`
}

// Verdict is the accept/reject result of checking a candidate against the
// original content.
type Verdict struct {
	Accepted   bool     `json:"accepted"`
	Reason     string   `json:"reason,omitempty"`
	Issues     []string `json:"issues,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// FailureDetail returns a single-line description of why a verdict rejected.
func (v Verdict) FailureDetail() string {
	if v.Accepted {
		return ""
	}
	if len(v.Issues) > 0 {
		return fmt.Sprintf("%s: %v", v.Reason, v.Issues)
	}
	return v.Reason
}
