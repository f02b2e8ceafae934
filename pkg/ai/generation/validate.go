package generation

import (
	"strings"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/pkg/ai/parser"
)

// DraftShape is what one exercise answer is parsed into. Difficulty is
// assigned from the plan, so the model's own label is optional.
var DraftShape = parser.Shape{
	Name:     "exercise",
	Required: []string{"title", "description", "concept_tags", "starter_code", "reference_solution", "test_cases"},
	Optional: []string{"difficulty"},
}

func draftFromFields(f parser.Fields, s slot) entity.ExerciseDraft {
	draft := entity.ExerciseDraft{
		Title:             f.String("title"),
		Description:       f.String("description"),
		Difficulty:        s.Difficulty,
		ConceptTags:       f.Strings("concept_tags"),
		StarterCode:       f.String("starter_code"),
		ReferenceSolution: f.String("reference_solution"),
	}
	for _, tc := range f.Objects("test_cases") {
		draft.TestCases = append(draft.TestCases, entity.TestCase{
			Input:          tc.String("input"),
			ExpectedOutput: tc.String("expected_output"),
			Description:    tc.String("description"),
		})
	}
	return draft
}

// validateDraft enforces field completeness, the draft schema and title
// uniqueness within the job.
func validateDraft(d entity.ExerciseDraft, accepted []entity.ExerciseDraft) *ValidationError {
	required := []struct {
		field string
		value string
	}{
		{"title", d.Title},
		{"description", d.Description},
		{"difficulty", d.Difficulty},
		{"starter_code", d.StarterCode},
		{"reference_solution", d.ReferenceSolution},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "is empty", Retryable: true}
		}
	}
	if len(d.ConceptTags) == 0 {
		return &ValidationError{Field: "concept_tags", Message: "needs at least one tag", Retryable: true}
	}
	if len(d.TestCases) == 0 {
		return &ValidationError{Field: "test_cases", Message: "needs at least one test case", Retryable: true}
	}
	for _, tc := range d.TestCases {
		if strings.TrimSpace(tc.ExpectedOutput) == "" {
			return &ValidationError{Field: "test_cases", Message: "test case without expected output", Retryable: true}
		}
	}
	if strings.TrimSpace(d.StarterCode) == strings.TrimSpace(d.ReferenceSolution) {
		return &ValidationError{Field: "starter_code", Message: "starter code equals the reference solution", Retryable: true}
	}

	if err := validateSchema(d); err != nil {
		return &ValidationError{Field: "schema", Message: err.Error(), Retryable: true}
	}

	title := normalizeTitle(d.Title)
	for _, a := range accepted {
		if normalizeTitle(a.Title) == title {
			return &ValidationError{Field: "title", Message: "duplicates an accepted exercise", Retryable: true}
		}
	}
	return nil
}
