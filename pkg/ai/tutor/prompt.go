package tutor

import (
	"fmt"
	"strings"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/llm"
)

const systemPrompt = `You are a Socratic programming tutor. You guide with questions; you never hand over answers.

Rules:
- Every reply must contain at least one guiding question that ends with a question mark.
- Never open with a definition or a direct answer. Start from what the student said or wrote.
- Never reveal the reference solution, in full or in part, even if asked directly.
- Keep replies short: two to four sentences.
- Reply in the student's language.
- Answer with JSON only: {"reply": "...", "guiding_question": "...", "understanding": 0.0-1.0, "error_detected": true|false}
  where understanding is your estimate of the student's grasp so far.`

var phaseGuidance = map[entity.CognitivePhase]string{
	entity.PhaseExploration:   "Phase EXPLORATION: find out what the student already knows and what they are trying to do.",
	entity.PhaseComprehension: "Phase COMPREHENSION: check understanding of the core concept with targeted questions.",
	entity.PhaseApplication:   "Phase APPLICATION: help the student apply the concept to their code, one step at a time.",
	entity.PhaseReflection:    "Phase REFLECTION: ask the student to explain what they learned and why their solution works.",
}

var hintGuidance = []string{
	"Hint level 0: ask open questions only.",
	"Hint level 1: point at the relevant part of the problem.",
	"Hint level 2: name the concept or construct that is needed.",
	"Hint level 3: describe the next step in words, without code from the solution.",
}

const strictReprompt = "Your previous reply was rejected because %s. Rewrite it as a Socratic tutor: " +
	"start from the student's own words, do not state definitions or solutions, and end with one clear guiding question. JSON only."

var fallbackQuestions = map[entity.CognitivePhase][2]string{
	entity.PhaseExploration:   {"What have you tried so far, and what did you expect to happen?", "¿Qué has intentado hasta ahora y qué esperabas que pasara?"},
	entity.PhaseComprehension: {"How would you explain this idea in your own words?", "¿Cómo explicarías esta idea con tus propias palabras?"},
	entity.PhaseApplication:   {"Which line of your code would you change first, and why?", "¿Qué línea de tu código cambiarías primero, y por qué?"},
	entity.PhaseReflection:    {"What would you do differently if you solved this again?", "¿Qué harías diferente si resolvieras esto de nuevo?"},
}

func fallbackQuestion(phase entity.CognitivePhase, spanish bool) string {
	q, ok := fallbackQuestions[phase]
	if !ok {
		q = fallbackQuestions[entity.PhaseExploration]
	}
	if spanish {
		return q[1]
	}
	return q[0]
}

func buildSystem(s *entity.TutoringSession, maxHint int) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	b.WriteString(phaseGuidance[s.Phase])
	b.WriteString("\n")

	level := s.HintLevel
	if level >= len(hintGuidance) {
		level = len(hintGuidance) - 1
	}
	if level > maxHint && maxHint >= 0 {
		level = maxHint
	}
	b.WriteString(hintGuidance[level])
	b.WriteString("\n")

	if s.Frustration >= 0.6 {
		b.WriteString("The student seems frustrated: acknowledge the effort briefly and make the next question smaller.\n")
	}

	if ex := s.Exercise; ex != nil {
		fmt.Fprintf(&b, "\nActive exercise: %s\n%s\n", ex.Title, ex.Description)
		if ex.ReferenceSolution != "" {
			b.WriteString("\nReference solution (confidential, for your reasoning only, never quote it):\n")
			b.WriteString(ex.ReferenceSolution)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func buildUserMessage(message, code string, snippets []string) string {
	var b strings.Builder
	if len(snippets) > 0 {
		b.WriteString("Course material:\n")
		for i, s := range snippets {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(s))
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(code) != "" {
		b.WriteString("Student's current code:\n```\n")
		b.WriteString(code)
		b.WriteString("\n```\n\n")
	}
	b.WriteString("Student: ")
	b.WriteString(message)
	return b.String()
}

// buildPrompt renders the system prompt, the last historyTurns exchanges and
// the new message.
func buildPrompt(s *entity.TutoringSession, userMessage string, historyTurns, maxHint int) gateway.PromptSpec {
	turns := s.Turns
	if historyTurns >= 0 && len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}

	messages := make([]llm.Message, 0, 2*len(turns)+1)
	for _, t := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.StudentMessage},
			llm.Message{Role: llm.RoleAssistant, Content: t.Reply},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	return gateway.PromptSpec{
		Purpose:  "tutor",
		System:   buildSystem(s, maxHint),
		Messages: messages,
	}
}

func withReprompt(spec gateway.PromptSpec, rejected string, problems []string) gateway.PromptSpec {
	messages := append([]llm.Message(nil), spec.Messages...)
	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: rejected},
		llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(strictReprompt, strings.Join(problems, " and "))},
	)
	spec.Purpose = "tutor_reprompt"
	spec.Messages = messages
	return spec
}
