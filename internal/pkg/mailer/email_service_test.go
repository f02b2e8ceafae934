package mailer

import (
	"testing"

	"ai-tutoring-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestBuildReviewMessage(t *testing.T) {
	m := buildReviewMessage("bot@example.com", "Tutor", "teacher@example.com", "https://school.example/review",
		ReviewRequest{JobID: "job-1", ScopeID: "cs101", Topic: "loops <intro>", Generated: 7, Requested: 10, Failed: 3})

	assert.Equal(t, []string{"teacher@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Exercises ready for review: loops <intro> (7 of 10)"}, m.GetHeader("Subject"))

	body := reviewBody("https://school.example/review", ReviewRequest{JobID: "job-1", Topic: "loops <intro>", Generated: 7, Requested: 10})
	assert.Contains(t, body, "https://school.example/review/job-1")
	assert.Contains(t, body, "loops &lt;intro&gt;")
}

func TestNewEmailService_NoHostIsNop(t *testing.T) {
	svc := NewEmailService("", 587, "", "", "Tutor", "", logger.NewNopLogger())
	assert.NoError(t, svc.SendReviewRequest("teacher@example.com", ReviewRequest{JobID: "job-1"}))
}
