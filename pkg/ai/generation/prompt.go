package generation

import (
	"fmt"
	"strings"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/llm"
)

const systemPrompt = `You are an instructor writing programming exercises for a course.

Rules:
- Write exactly one exercise per answer, grounded in the course material provided.
- Match the requested difficulty and concept.
- The starter code must compile or run but must not solve the exercise.
- The reference solution must solve the exercise completely.
- Provide at least one test case with a concrete input and the expected output.
- Do not repeat an exercise from the "already written" list.
- Answer with a single JSON object and nothing else.`

const outputFormat = `{
  "title": "short title",
  "description": "what the student must do",
  "difficulty": "easy | medium | hard",
  "concept_tags": ["concept"],
  "starter_code": "code the student starts from",
  "reference_solution": "complete solution",
  "test_cases": [{"input": "...", "expected_output": "...", "description": "..."}]
}`

const strictReprompt = "Respond with JSON only, no commentary. Use exactly the keys of the format above. Missing or empty: %s."

func buildUserMessage(req entity.Requirements, s slot, total int, snippets gateway.RetrievalContext, priorTitles []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Exercise %d of %d\n", s.Index+1, total)
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Concept: %s\n", s.Concept)
	fmt.Fprintf(&b, "Difficulty: %s\n", s.Difficulty)
	if req.Language != "" {
		fmt.Fprintf(&b, "Programming language: %s\n", req.Language)
	}

	b.WriteString("\nCourse material:\n")
	if len(snippets) == 0 {
		b.WriteString("None available. Rely on the topic and concept.\n")
	}
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(s.Text))
	}

	b.WriteString("\nAlready written:\n")
	if len(priorTitles) == 0 {
		b.WriteString("None\n")
	}
	for i, t := range priorTitles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}

	b.WriteString("\nOutput format:\n")
	b.WriteString(outputFormat)
	return b.String()
}

func buildPrompt(userMessage string) gateway.PromptSpec {
	return gateway.PromptSpec{
		Purpose:  "generation",
		System:   systemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: userMessage}},
	}
}

// withReprompt continues the conversation with the first answer and a
// stricter instruction naming what was missing.
func withReprompt(spec gateway.PromptSpec, firstAnswer string, missing []string) gateway.PromptSpec {
	messages := append([]llm.Message(nil), spec.Messages...)
	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: firstAnswer},
		llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(strictReprompt, strings.Join(missing, ", "))},
	)
	spec.Purpose = "generation_reprompt"
	spec.Messages = messages
	return spec
}
