package contract

import (
	"context"

	"ai-tutoring-be/internal/entity"
)

type DiagnosticReportRepository interface {
	Create(ctx context.Context, report *entity.DiagnosticReport) error
	// FindAllByStudent returns the student's reports, newest first.
	FindAllByStudent(ctx context.Context, studentId string, limit int) ([]*entity.DiagnosticReport, error)
}
