package entity

import (
	"time"

	"github.com/google/uuid"
)

// LearningSource is immutable once stored. A re-upload under the same
// SourceKey creates a new row that points at the one it supersedes.
type LearningSource struct {
	Id           uuid.UUID
	ScopeId      string
	SourceKey    string
	Title        string
	SourceType   string
	Content      string
	ContentHash  string
	SupersedesId *uuid.UUID
	CreatedAt    time.Time
}
