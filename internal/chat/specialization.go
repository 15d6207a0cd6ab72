package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"
)

const (
	GeneralMedicine = "General Medicine"
	ENT             = "ENT"

	matchType         = "specialization_match"
	defaultDisclaimer = "This is not a medical diagnosis. Please consult a qualified doctor."
)

// Specializations is the allow-list every inferred name is normalized into.
var Specializations = []string{
	"Cardiology", "Orthopedics", "Pediatrics", "Dermatology", "Neurology",
	"Gynecology", ENT, GeneralMedicine, "Surgery", "Ophthalmology",
	"Pulmonology", "Oncology",
}

const symptomPrompt = `IMPORTANT: The user is describing health symptoms. You must respond ONLY with valid JSON in this exact format:
{"type":"specialization_match","symptom":"<brief symptom summary>","inferred_issue":"<simple non-diagnostic explanation>","specializations":["<spec1>","<spec2>"],"confidence":"low|medium|high","disclaimer":"This is not a medical diagnosis. Please consult a qualified doctor."}

RULES:
- Choose 1-3 specializations ONLY from: Cardiology, Orthopedics, Pediatrics, Dermatology, Neurology, Gynecology, ENT, General Medicine, Surgery, Ophthalmology, Pulmonology, Oncology
- If unsure, include "General Medicine"
- Do NOT diagnose or prescribe
- Use simple, non-alarming language
- Keep "inferred_issue" brief and general
- Respond ONLY with the JSON, nothing else
- Do NOT invent or mention hospital names. Your job is only to identify the SPECIALIZATION.`

var (
	errNoJSON       = errors.New("no JSON object in reply")
	errNotMatchType = errors.New("reply is not a specialization match")
)

// SymptomMatch is the structured reply requested from the completion service.
type SymptomMatch struct {
	Type            string   `json:"type"`
	Symptom         string   `json:"symptom"`
	InferredIssue   string   `json:"inferred_issue"`
	Specializations []string `json:"specializations"`
	Confidence      string   `json:"confidence"`
	Disclaimer      string   `json:"disclaimer"`
}

// ParseSymptomMatch pulls the first JSON object out of raw and validates it.
// Specializations come back normalized; a missing disclaimer gets the default.
func ParseSymptomMatch(raw string) (SymptomMatch, error) {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return SymptomMatch{}, errNoJSON
	}

	var m SymptomMatch
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return SymptomMatch{}, err
	}
	if m.Type != matchType {
		return SymptomMatch{}, errNotMatchType
	}

	m.Symptom = strings.TrimSpace(m.Symptom)
	m.Specializations = NormalizeSpecializations(m.Specializations)
	if strings.TrimSpace(m.Disclaimer) == "" {
		m.Disclaimer = defaultDisclaimer
	}
	return m, nil
}

// ExtractJSON returns the first balanced {...} in s. Braces inside JSON
// strings are ignored.
func ExtractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end := matchBrace(s, start); end > 0 {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// NormalizeSpecialization maps any name onto the allow-list. Unrecognized
// names become General Medicine.
func NormalizeSpecialization(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	compact := strings.ReplaceAll(lower, " ", "")

	for _, valid := range Specializations {
		if strings.ToLower(valid) == lower {
			return valid
		}
	}
	for _, valid := range Specializations {
		if strings.ToLower(strings.ReplaceAll(valid, " ", "")) == compact {
			return valid
		}
	}

	if strings.Contains(lower, "general") || strings.Contains(lower, "medicine") {
		return GeneralMedicine
	}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		switch w {
		case "ent", "ear", "ears", "nose", "throat", "otolaryngology", "otorhinolaryngology":
			return ENT
		}
	}
	return GeneralMedicine
}

// NormalizeSpecializations normalizes and dedups, keeping first-seen order.
// An empty input yields General Medicine.
func NormalizeSpecializations(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		v := NormalizeSpecialization(n)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, GeneralMedicine)
	}
	return out
}
