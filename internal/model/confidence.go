package model

// ConfidenceMap maps a dotted field path (e.g. "text.attacks") to a score in
// [0,1]. Scores are clamped on insertion so downstream comparisons never see
// out-of-range values.
type ConfidenceMap map[string]float64

// Clamp bounds a raw score to [0,1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Set stores a clamped score for the field path.
func (m ConfidenceMap) Set(field string, score float64) {
	m[field] = Clamp(score)
}

// Get returns the score for a field path and whether one was recorded.
func (m ConfidenceMap) Get(field string) (float64, bool) {
	v, ok := m[field]
	return v, ok
}

// Normalize returns a copy with every score clamped to [0,1]. Safe on nil maps.
func (m ConfidenceMap) Normalize() ConfidenceMap {
	out := make(ConfidenceMap, len(m))
	for k, v := range m {
		out[k] = Clamp(v)
	}
	return out
}
