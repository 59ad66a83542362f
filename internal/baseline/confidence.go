package baseline

import (
	"strings"
	"time"
)

// Confidence recency windows.
const (
	recentWindow = 30 * 24 * time.Hour
	staleWindow  = 90 * 24 * time.Hour
)

// ComputeConfidence scores how much a baseline entry can be trusted, from its
// verification track record and the quality of its source URL. The result is
// clamped to [0, 1].
//
// Components:
//   - +0.3 when the entry has been verified
//   - +0.3 for a government source URL, else +0.1 for any source URL
//   - +0.2 when last found within 30 days, else +0.1 within 90 days
//   - +0.2 when found at least 3 times
//   - -0.3 when last found more than 90 days ago
//   - -0.2 when not found at least 3 times
func ComputeConfidence(r Regulation, now time.Time) float64 {
	score := 0.0
	if r.IsVerified {
		score += 0.3
	}
	if r.SourceURL != "" {
		if isGovernmentURL(r.SourceURL) {
			score += 0.3
		} else {
			score += 0.1
		}
	}
	if r.LastFoundAt != nil {
		age := now.Sub(*r.LastFoundAt)
		switch {
		case age <= recentWindow:
			score += 0.2
		case age <= staleWindow:
			score += 0.1
		default:
			score -= 0.3
		}
	}
	if r.FoundCount >= 3 {
		score += 0.2
	}
	if r.NotFoundCount >= 3 {
		score -= 0.2
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// isGovernmentURL recognizes the government TLD patterns of the covered
// jurisdictions: .gov (US/TW), .go.jp style, and .gob (Spanish-speaking).
func isGovernmentURL(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, marker := range []string{".gov", ".go.", ".gob"} {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}
