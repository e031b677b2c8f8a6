package capability

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripFences removes a surrounding markdown code fence from model output.
// Models frequently wrap JSON or code in ```json ... ``` blocks even when
// told not to.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
		return strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	return text
}

// analysisResponse is the wire shape of an Analyze response.
type analysisResponse struct {
	NeedsUpdate  bool     `json:"needs_update"`
	Reason       string   `json:"reason"`
	Instructions []string `json:"instructions"`
}

// parseAnalysis decodes an Analyze response. A response with needs_update
// false yields a nil plan, meaning the artifact is already current.
func parseAnalysis(text string) (*ChangePlan, error) {
	var resp analysisResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: analysis: %v", ErrUnparseable, err)
	}
	if !resp.NeedsUpdate {
		return nil, nil
	}
	return &ChangePlan{
		Summary:      resp.Reason,
		Reason:       resp.Reason,
		Instructions: resp.Instructions,
	}, nil
}

// transformResponse is the wire shape of a Transform response.
type transformResponse struct {
	RefactoredCode string `json:"refactored_code"`
	Comments       string `json:"refactored_code_comments"`
}

// parseTransform decodes a Transform response into a Candidate.
func parseTransform(text string, attempt int) (*Candidate, error) {
	var resp transformResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: transform: %v", ErrUnparseable, err)
	}
	if strings.TrimSpace(resp.RefactoredCode) == "" {
		return nil, fmt.Errorf("%w: transform returned empty content", ErrUnparseable)
	}
	return &Candidate{
		Content: resp.RefactoredCode,
		Notes:   resp.Comments,
		Attempt: attempt,
	}, nil
}

// verifyResponse is the wire shape of a Verify response.
type verifyResponse struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// parseVerdict decodes a Verify response. A verdict passes when the checker
// says so outright or reports very high confidence despite a nominal fail.
func parseVerdict(text string) (*Verdict, error) {
	var resp verifyResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: verify: %v", ErrUnparseable, err)
	}
	v := &Verdict{
		Accepted:   resp.Passed || resp.Confidence > 0.85,
		Issues:     resp.Issues,
		Confidence: resp.Confidence,
	}
	if !v.Accepted {
		v.Reason = "verification failed"
	}
	return v, nil
}

// diagnosisResponse is the wire shape of a Diagnose response.
type diagnosisResponse struct {
	RootCause       string   `json:"root_cause"`
	FixInstructions []string `json:"fix_instructions"`
}

// parseDiagnosis decodes a Diagnose response into a refined ChangePlan.
func parseDiagnosis(text string) (*ChangePlan, error) {
	var resp diagnosisResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: diagnosis: %v", ErrUnparseable, err)
	}
	return &ChangePlan{
		Summary:      resp.RootCause,
		Reason:       resp.RootCause,
		Instructions: resp.FixInstructions,
		Refined:      true,
	}, nil
}
