package intent

import (
	"strings"

	"halobot/pkg/proto"
)

// Keyword indicators per language, matched on word boundaries.
//
//nolint:gochecknoglobals // Fixed detection tables, effectively constants
var (
	yorubaIndicators = []string{"bawo", "kaabo", "jowo", "emi", "won", "nibo"}
	hausaIndicators  = []string{"yaya", "ina", "maraba", "nagode", "wannan"}
	igboIndicators   = []string{"kedu", "ndewo", "biko", "daalu", "nke"}
)

// translations maps message keys to per-language canned texts. Used for
// deterministic fallbacks when the LLM composer is unavailable.
//
//nolint:gochecknoglobals // Static translation table
var translations = map[string]map[proto.Lang]string{
	"welcome": {
		proto.LangEnglish: "Welcome! How can I help you today?",
		proto.LangYoruba:  "Kaabo! Bawo ni mo se le ran e lowo loni?",
		proto.LangHausa:   "Maraba! Yaya zan iya taimaka muku yau?",
		proto.LangIgbo:    "Ndewo! Kedu ka m ga-enyere gị aka taa?",
	},
	"order_received": {
		proto.LangEnglish: "Thank you for your order! We'll process it shortly.",
		proto.LangYoruba:  "E se fun order yin! A o se e laipe.",
		proto.LangHausa:   "Na gode da odar ku! Za mu sarrafa shi nan ba da jimawa ba.",
		proto.LangIgbo:    "Daalụ maka order gị! Anyị ga-edozi ya n'oge na-adịghị anya.",
	},
	"fallback": {
		proto.LangEnglish: "Sorry, I'm having trouble right now. Please try again in a moment.",
		proto.LangYoruba:  "Ma binu, a ni wahala diẹ bayi. E gbiyanju lẹẹkansi laipẹ.",
		proto.LangHausa:   "Yi hakuri, muna fama da matsala a yanzu. Da fatan za a sake gwadawa nan gaba kadan.",
		proto.LangIgbo:    "Ndo, anyị nwere nsogbu ugbu a. Biko nwaa ọzọ n'oge na-adịghị anya.",
	},
	"complaint_acknowledged": {
		proto.LangEnglish: "I understand your concern. Let me help resolve this issue.",
		proto.LangYoruba:  "Mo ye ohun ti e n so. Je ki n ran yin lowo lati yanju oro yi.",
		proto.LangHausa:   "Na fahimci damuwar ku. Bari in taimaka wajen magance wannan matsala.",
		proto.LangIgbo:    "Aghọtara m ihe na-echegbu gị. Ka m nyere gị aka idozi nsogbu a.",
	},
}

// DetectLanguage guesses the customer's language from keyword indicators.
// Defaults to English when nothing distinctive appears.
func DetectLanguage(text string) proto.Lang {
	lower := strings.ToLower(text)

	switch {
	case containsAnyWord(lower, yorubaIndicators):
		return proto.LangYoruba
	case containsAnyWord(lower, hausaIndicators):
		return proto.LangHausa
	case containsAnyWord(lower, igboIndicators):
		return proto.LangIgbo
	default:
		return proto.LangEnglish
	}
}

// Translate returns the canned text for a message key in the given language,
// falling back to English, then to the key itself.
func Translate(key string, lang proto.Lang) string {
	if byLang, ok := translations[key]; ok {
		if text, ok := byLang[lang]; ok {
			return text
		}
		if text, ok := byLang[proto.LangEnglish]; ok {
			return text
		}
	}
	return key
}
