package unitofwork

import (
	"context"

	"ai-tutoring-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	LearningSourceRepository() contract.LearningSourceRepository
	GenerationJobRepository() contract.GenerationJobRepository
	TutoringSessionRepository() contract.TutoringSessionRepository
	DiagnosticReportRepository() contract.DiagnosticReportRepository
}
