package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawEvent mirrors the JSON object the model is asked to produce. Country is
// held loosely typed so a null or numeric value survives parsing and is
// caught by validation instead of failing the whole parse. Severity and
// confidence are pointers to distinguish absent from zero.
type rawEvent struct {
	Summary            string   `json:"summary"`
	Country            any      `json:"country"`
	Regions            []string `json:"regions"`
	EventType          string   `json:"eventType"`
	EventSubtype       string   `json:"eventSubtype"`
	Severity           *float64 `json:"severity"`
	Scope              string   `json:"scope"`
	VerificationStatus string   `json:"verificationStatus"`
	Confidence         *float64 `json:"confidence"`
	Actors             []string `json:"actors"`
	Rationale          string   `json:"rationale"`
}

// country returns the country field when the model produced a string, or ""
// otherwise.
func (ev *rawEvent) country() string {
	s, _ := ev.Country.(string)
	return strings.TrimSpace(s)
}

// parseResponse strips an optional markdown fence and JSON-parses the model
// output.
func parseResponse(raw string) (*rawEvent, error) {
	var ev rawEvent
	if err := json.Unmarshal([]byte(stripFence(raw)), &ev); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return &ev, nil
}

// stripFence removes a leading ```json (or bare ```) line and a trailing ```
// when the model wraps its output despite instructions.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
