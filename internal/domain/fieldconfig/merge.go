package fieldconfig

// MergeExtraction reconciles an AI analysis result with the values already on
// a request: shallow merge, AI-provided keys win, manual keys absent from the
// result survive. Neither input map is mutated, and the merge is idempotent:
// applying the same result twice yields the same map as applying it once.
//
// There is deliberately no conflict detection: a manual edit followed by a
// re-analysis is silently overwritten for any key the new result carries.
func MergeExtraction(existing, aiResult map[string]Value) map[string]Value {
	merged := make(map[string]Value, len(existing)+len(aiResult))
	for key, value := range existing {
		merged[key] = value
	}
	for key, value := range aiResult {
		merged[key] = value
	}
	return merged
}
