package chat

import (
	"fmt"
	"strings"
)

const personaPrompt = "You are a helpful healthcare assistant. Maintain conversational context. " +
	"Provide general possible causes for symptoms. Limit responses to 4-6 lines. Do NOT diagnose. " +
	"Always advise consulting a doctor. If user asks about hospitals near a place, tell them to use " +
	"the format 'hospital near [city name]' for better results. CRITICAL: DO NOT invent hospital names. " +
	"If asked for hospitals, say you can help check the database but do not list random real-world names."

var languageNames = map[string]string{
	"en":  "English",
	"hi":  "Hindi",
	"te":  "Telugu",
	"ta":  "Tamil",
	"kn":  "Kannada",
	"ml":  "Malayalam",
	"mr":  "Marathi",
	"gu":  "Gujarati",
	"bn":  "Bengali",
	"pa":  "Punjabi",
	"or":  "Odia",
	"as":  "Assamese",
	"ur":  "Urdu",
	"kok": "Konkani",
	"ks":  "Kashmiri",
	"mni": "Manipuri",
}

// LanguageName resolves a language code, defaulting to English.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return "English"
}

// plainPrompt is the persona prompt, with a language instruction for
// anything other than English.
func plainPrompt(language string) string {
	name := LanguageName(language)
	if name == "English" {
		return personaPrompt
	}
	return personaPrompt + fmt.Sprintf(
		" IMPORTANT: You MUST respond in %s language. All your responses should be written in %s.", name, name)
}

func explanation(m SymptomMatch) string {
	symptom := m.Symptom
	if symptom == "" {
		symptom = "described issue"
	}
	issue := strings.TrimSpace(m.InferredIssue)
	if issue == "" {
		issue = "a health concern"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on your symptoms (%s), this could be related to %s.\n\n", symptom, issue)
	b.WriteString("Common causes may include:\n")
	b.WriteString("• Minor irritation or inflammation\n")
	b.WriteString("• Stress or lifestyle factors\n")
	b.WriteString("• Underlying medical conditions\n\n")
	b.WriteString("💡 If you'd like, I can:\n")
	b.WriteString("→ Show nearby hospitals\n")
	b.WriteString("→ Help book an appointment")
	return b.String()
}
