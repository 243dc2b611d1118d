package extract

// DefaultConfidenceThreshold is the confidence (0-100) below which a local
// OCR result is considered unreliable enough to offer cloud escalation. The
// value is an empirical calibration and is configurable, not a constant of
// the algorithm.
const DefaultConfidenceThreshold = 60.0

// Decide applies the escalation rule for one page.
//
// At or above the threshold the local result is accepted as-is and the
// caller is never consulted. Below the threshold, escalation requires both a
// configured cloud backend and an explicit yes from the ask callback:
// sending document content to a third party costs money and leaves the
// user's machine, so it never happens silently. A declined or impossible
// escalation keeps the local result rather than failing the page.
func Decide(confidence, threshold float64, cloudAvailable bool, ask func() bool) EscalationDecision {
	d := EscalationDecision{
		Confidence: confidence,
		Threshold:  threshold,
	}

	if confidence >= threshold {
		return d
	}
	if !cloudAvailable || ask == nil {
		return d
	}

	d.UserConsulted = true
	d.ShouldEscalate = ask()
	return d
}
