package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobState uint8

const (
	JobIngesting JobState = iota + 1
	JobChunking
	JobRetrievingContext
	JobGenerating
	JobAwaitingReview
	JobApproved
	JobRejected
	JobFailed
)

var jobStateNames = map[JobState]string{
	JobIngesting:         "INGESTING",
	JobChunking:          "CHUNKING",
	JobRetrievingContext: "RETRIEVING_CONTEXT",
	JobGenerating:        "GENERATING",
	JobAwaitingReview:    "AWAITING_REVIEW",
	JobApproved:          "APPROVED",
	JobRejected:          "REJECTED",
	JobFailed:            "FAILED",
}

// jobTransitions lists every legal successor. Review decisions are the only
// way out of AWAITING_REVIEW.
var jobTransitions = map[JobState][]JobState{
	JobIngesting:         {JobChunking, JobRejected, JobFailed},
	JobChunking:          {JobRetrievingContext, JobRejected, JobFailed},
	JobRetrievingContext: {JobGenerating, JobRejected, JobFailed},
	JobGenerating:        {JobAwaitingReview, JobRejected, JobFailed},
	JobAwaitingReview:    {JobApproved, JobRejected},
	JobApproved:          {},
	JobRejected:          {},
	JobFailed:            {},
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobState(%d)", s)
}

func (s JobState) MarshalText() ([]byte, error) {
	if _, ok := jobStateNames[s]; !ok {
		return nil, fmt.Errorf("unknown job state %d", s)
	}
	return []byte(s.String()), nil
}

func (s *JobState) UnmarshalText(text []byte) error {
	parsed, err := ParseJobState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseJobState(name string) (JobState, error) {
	for state, n := range jobStateNames {
		if strings.EqualFold(n, name) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown job state %q", name)
}

func (s JobState) CanTransition(to JobState) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JobState) IsTerminal() bool {
	next, ok := jobTransitions[s]
	return ok && len(next) == 0
}

type Requirements struct {
	Topic          string
	Concepts       []string
	Difficulty     string
	Language       string
	RequestedCount int
	ReviewerEmail  string
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Description    string `json:"description,omitempty"`
}

type ExerciseDraft struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Difficulty        string     `json:"difficulty"`
	ConceptTags       []string   `json:"concept_tags"`
	StarterCode       string     `json:"starter_code"`
	ReferenceSolution string     `json:"reference_solution"`
	TestCases         []TestCase `json:"test_cases"`
	ParseTier         int        `json:"parse_tier"`
	Reprompted        bool       `json:"reprompted"`
}

// DraftFailure records an exercise that produced no accepted draft.
type DraftFailure struct {
	Index     int    `json:"index"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

type GenerationJob struct {
	Id            uuid.UUID
	SourceId      uuid.UUID
	ScopeId       string
	SourceKey     string
	Requirements  Requirements
	State         JobState
	Drafts        []ExerciseDraft
	Failures      []DraftFailure
	ChunkCount    int
	FailureReason string
	ReviewedBy    string
	ReviewNote    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func (j *GenerationJob) GeneratedCount() int { return len(j.Drafts) }

func (j *GenerationJob) RequestedCount() int { return j.Requirements.RequestedCount }

// Clone returns a deep copy so a pipeline can work without sharing slices
// with the stored record.
func (j *GenerationJob) Clone() *GenerationJob {
	if j == nil {
		return nil
	}
	c := *j
	c.Requirements.Concepts = append([]string(nil), j.Requirements.Concepts...)
	c.Drafts = make([]ExerciseDraft, len(j.Drafts))
	for i, d := range j.Drafts {
		d.ConceptTags = append([]string(nil), d.ConceptTags...)
		d.TestCases = append([]TestCase(nil), d.TestCases...)
		c.Drafts[i] = d
	}
	c.Failures = append([]DraftFailure(nil), j.Failures...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
