package app

import (
	"regexp"
	"strings"

	"studyai/internal/model"
)

const sectionRule = "============================"

const promptInstructions = `- Answer ONLY using the study material
- Explain in simple, clear language
- Use bullet points if helpful
- If the answer is not in the material, say:
  "This information is not available in the uploaded content."
- Do NOT add unrelated outside knowledge`

// Runs of '=' long enough to pass for a section rule. Collapsing them
// keeps document or question text from forging a template section.
var ruleLookalike = regexp.MustCompile(`={8,}`)

func neutralizeDelimiters(s string) string {
	return ruleLookalike.ReplaceAllString(s, "=======")
}

// buildPrompt renders the exact text sent to the model: system
// directive, study material, a bounded window of prior turns (oldest
// first), and the new question. Pure function, no I/O.
func buildPrompt(contextText string, history []model.ChatMessage, question string) string {
	var b strings.Builder
	b.WriteString("You are an intelligent and helpful study assistant.\n")

	section(&b, "STUDY MATERIAL")
	material := neutralizeDelimiters(contextText)
	if strings.TrimSpace(material) == "" {
		material = "(no study material)"
	}
	b.WriteString(material)
	b.WriteByte('\n')

	if len(history) > 0 {
		section(&b, "CONVERSATION SO FAR")
		for _, msg := range history {
			speaker := "Student"
			if msg.Role == model.RoleAssistant {
				speaker = "Assistant"
			}
			b.WriteString(speaker)
			b.WriteString(": ")
			b.WriteString(neutralizeDelimiters(msg.Content))
			b.WriteByte('\n')
		}
	}

	section(&b, "STUDENT QUESTION")
	b.WriteString(neutralizeDelimiters(question))
	b.WriteByte('\n')

	section(&b, "INSTRUCTIONS")
	b.WriteString(promptInstructions)
	b.WriteByte('\n')

	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteByte('\n')
	b.WriteString(sectionRule)
	b.WriteByte('\n')
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(sectionRule)
	b.WriteByte('\n')
}
