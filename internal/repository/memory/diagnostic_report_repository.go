package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/contract"

	"github.com/google/uuid"
)

const reportKind = "report"

type DiagnosticReportRepository struct {
	store *Store
}

func NewDiagnosticReportRepository(store *Store) contract.DiagnosticReportRepository {
	return &DiagnosticReportRepository{store: store}
}

func (r *DiagnosticReportRepository) Create(ctx context.Context, report *entity.DiagnosticReport) error {
	if report.Id == uuid.Nil {
		report.Id = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	r.store.cache.Set(key(reportKind, report.Id.String()), copyReport(report), 0)
	return nil
}

func (r *DiagnosticReportRepository) FindAllByStudent(ctx context.Context, studentId string, limit int) ([]*entity.DiagnosticReport, error) {
	var reports []*entity.DiagnosticReport
	prefix := reportKind + ":"
	for k, item := range r.store.cache.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		report := item.Object.(*entity.DiagnosticReport)
		if report.StudentId == studentId {
			reports = append(reports, copyReport(report))
		}
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func copyReport(r *entity.DiagnosticReport) *entity.DiagnosticReport {
	c := *r
	c.Evidence = append([]entity.EvidenceItem(nil), r.Evidence...)
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}
