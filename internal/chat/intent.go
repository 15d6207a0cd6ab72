package chat

import (
	"regexp"
	"strings"
)

type Intent int

const (
	IntentPlain Intent = iota
	IntentPlaceQuery
	IntentContinuation
	IntentSymptom
)

func (i Intent) String() string {
	switch i {
	case IntentPlaceQuery:
		return "place_query"
	case IntentContinuation:
		return "continuation"
	case IntentSymptom:
		return "symptom"
	default:
		return "plain"
	}
}

// Classification is the routing decision for one message. Place and NearMe
// are only meaningful for IntentPlaceQuery.
type Classification struct {
	Intent Intent
	Place  string
	NearMe bool
}

var placeQueryPattern = regexp.MustCompile(`(?i)(?:hospitals?|clinics?)\s+(?:near|in|at|around)\s+(.+)`)

var continuationPhrases = []string{
	"show", "hospitals", "nearby", "find hospital",
	"book", "appointment", "see a doctor", "doctor",
}

var symptomKeywords = []string{
	"pain", "ache", "aching", "fever", "cough", "cold", "headache", "stomach",
	"breathing", "breath", "chest", "heart", "skin", "rash", "itch", "itching",
	"swelling", "swollen", "injury", "injured", "blood", "bleeding", "vomit",
	"nausea", "dizziness", "dizzy", "fatigue", "tired", "weakness", "weak",
	"infection", "sore", "throat", "ear", "eye", "vision", "hearing", "joint",
	"bone", "muscle", "back", "neck", "leg", "arm", "hand", "foot", "feet",
	"nose", "allergy", "allergic", "pregnant", "pregnancy", "period", "menstrual",
	"diabetes", "sugar", "pressure", "bp", "anxiety", "depression", "sleep",
	"insomnia", "cancer", "tumor", "lump", "burn", "cut", "wound", "fracture",
	"sprain", "symptom", "symptoms", "problem", "issue", "suffering", "hurts",
	"hurt", "hurting", "uncomfortable", "discomfort", "unwell", "sick", "ill",
	"disease", "condition", "diagnosis", "treatment", "doctor", "specialist",
	"specialised", "specialized", "hospitals", "hospital", "clinic", "clinics",
}

// Classify routes a message. hasResumable is only consulted when the message
// uses continuation vocabulary, so a store lookup is skipped for most turns.
func Classify(text string, hasResumable func() bool) Classification {
	trimmed := strings.TrimSpace(text)

	if m := placeQueryPattern.FindStringSubmatch(trimmed); m != nil {
		place := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(m[1]), "?.!"))
		return Classification{
			Intent: IntentPlaceQuery,
			Place:  place,
			NearMe: isNearMe(place),
		}
	}

	lower := strings.ToLower(trimmed)
	if containsAny(lower, continuationPhrases) && hasResumable != nil && hasResumable() {
		return Classification{Intent: IntentContinuation}
	}

	if containsAny(lower, symptomKeywords) {
		return Classification{Intent: IntentSymptom}
	}

	return Classification{Intent: IntentPlain}
}

func isNearMe(place string) bool {
	return strings.EqualFold(place, "me") || strings.EqualFold(place, "my location")
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
