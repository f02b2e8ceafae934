package implementation

import (
	"context"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/mapper"
	"ai-tutoring-be/internal/model"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/specification"

	"gorm.io/gorm"
)

type DiagnosticReportRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DiagnosticMapper
}

func NewDiagnosticReportRepository(db *gorm.DB) contract.DiagnosticReportRepository {
	return &DiagnosticReportRepositoryImpl{
		db:     db,
		mapper: mapper.NewDiagnosticMapper(),
	}
}

func (r *DiagnosticReportRepositoryImpl) Create(ctx context.Context, report *entity.DiagnosticReport) error {
	m := r.mapper.ReportToModel(report)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	report.Id = m.Id
	report.CreatedAt = m.CreatedAt
	return nil
}

func (r *DiagnosticReportRepositoryImpl) FindAllByStudent(ctx context.Context, studentId string, limit int) ([]*entity.DiagnosticReport, error) {
	specs := []specification.Specification{
		specification.ByStudentID{StudentId: studentId},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if limit > 0 {
		specs = append(specs, specification.Pagination{Limit: limit})
	}

	var models []*model.DiagnosticReport
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}

	reports := make([]*entity.DiagnosticReport, 0, len(models))
	for _, m := range models {
		report, err := r.mapper.ReportToEntity(m)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
