package intent

import (
	"strings"
)

// Consent interpretation labels.
const (
	ConsentRejection = "rejection"
	ConsentStrong    = "strong_consent"
	ConsentWeak      = "weak_consent"
	ConsentAmbiguous = "ambiguous"
)

//nolint:gochecknoglobals // Fixed phrase lists, effectively constants
var (
	strongConsentPhrases = []string{
		"sure", "ok", "okay", "yes", "yep", "yeah", "sounds good",
		"go ahead", "do it", "please", "that's fine", "alright",
		"cool", "perfect", "great",
	}

	weakConsentPhrases = []string{"maybe", "i guess", "fine", "whatever"}

	rejectionPhrases = []string{"no", "nope", "nah", "don't", "stop", "never"}
)

// InferConsent reads an opt-in or opt-out decision from natural language.
// Rejection is checked first so "no thanks" never reads as consent.
// Returns the decision, a confidence score, and the interpretation label.
func InferConsent(message string) (bool, float64, string) {
	lower := strings.ToLower(strings.TrimSpace(message))

	if containsAnyWord(lower, rejectionPhrases) {
		return false, 0.95, ConsentRejection
	}
	if containsAnyWord(lower, strongConsentPhrases) {
		return true, 0.9, ConsentStrong
	}
	if containsAnyWord(lower, weakConsentPhrases) {
		return true, 0.6, ConsentWeak
	}

	return false, 0.3, ConsentAmbiguous
}

// ShouldAskClarification reports whether the consent signal is too weak to act on.
func ShouldAskClarification(confidence float64) bool {
	return confidence >= 0.5 && confidence < 0.8
}

// containsAnyWord matches phrases on word boundaries so "no" never matches
// inside "know" or "nothing".
func containsAnyWord(text string, phrases []string) bool {
	padded := " " + strings.NewReplacer(",", " ", ".", " ", "!", " ", "?", " ").Replace(text) + " "
	for _, phrase := range phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
