package extract

import "fmt"

// minConfidence is the acceptance floor: below it, soft validation errors
// quarantine the output.
const minConfidence = 0.3

var (
	eventTypes = map[string]bool{
		"security": true, "political": true, "economic": true,
		"humanitarian": true, "infrastructure": true, "legal": true,
	}
	scopes = map[string]bool{
		"local": true, "state": true, "national": true, "cross_border": true,
	}
	verificationStatuses = map[string]bool{
		"confirmed": true, "reported": true, "unverified": true,
	}
)

// validate checks a parsed model output against the event schema. Hard
// reasons always reject the output. Soft reasons reject only when confidence
// is below the floor; an accepted event simply drops them.
func validate(ev *rawEvent) (hard, soft []string) {
	if ev.country() == "" {
		hard = append(hard, "missing country")
	}
	if !eventTypes[ev.EventType] {
		hard = append(hard, fmt.Sprintf("invalid eventType %q", ev.EventType))
	}
	if ev.Severity == nil {
		hard = append(hard, "missing severity")
	} else if *ev.Severity < 1 || *ev.Severity > 5 {
		hard = append(hard, fmt.Sprintf("severity %v out of range", *ev.Severity))
	}
	if ev.Scope != "" && !scopes[ev.Scope] {
		hard = append(hard, fmt.Sprintf("invalid scope %q", ev.Scope))
	}
	if ev.VerificationStatus != "" && !verificationStatuses[ev.VerificationStatus] {
		hard = append(hard, fmt.Sprintf("invalid verificationStatus %q", ev.VerificationStatus))
	}
	if ev.Confidence != nil && (*ev.Confidence < 0 || *ev.Confidence > 1) {
		hard = append(hard, fmt.Sprintf("confidence %v out of range", *ev.Confidence))
	}

	if ev.Confidence != nil && *ev.Confidence >= 0 && *ev.Confidence < minConfidence {
		soft = append(soft, fmt.Sprintf("confidence %v below threshold", *ev.Confidence))
	}
	if len(ev.Regions) == 0 {
		soft = append(soft, "missing regions")
	}
	return hard, soft
}

// lowConfidence reports whether the output sits below the acceptance floor.
// Missing confidence does not count as low.
func lowConfidence(ev *rawEvent) bool {
	return ev.Confidence != nil && *ev.Confidence < minConfidence
}
