package mapper

import (
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/model"

	"gorm.io/datatypes"
)

type DiagnosticMapper struct{}

func NewDiagnosticMapper() *DiagnosticMapper {
	return &DiagnosticMapper{}
}

func (m *DiagnosticMapper) ReportToEntity(r *model.DiagnosticReport) (*entity.DiagnosticReport, error) {
	if r == nil {
		return nil, nil
	}
	report := &entity.DiagnosticReport{
		Id:            r.Id,
		StudentId:     r.StudentId,
		Category:      r.Category,
		Diagnosis:     r.Diagnosis,
		Intervention:  r.Intervention,
		Confidence:    r.Confidence,
		Tags:          []string(r.Tags),
		LowConfidence: r.LowConfidence,
		Ungrounded:    r.Ungrounded,
		RuleCategory:  r.RuleCategory,
		ParseTier:     r.ParseTier,
		RiskScore:     r.RiskScore,
		RiskLevel:     r.RiskLevel,
		CreatedAt:     r.CreatedAt,
	}
	if err := decodeJSON(r.Evidence, &report.Evidence); err != nil {
		return nil, err
	}
	return report, nil
}

func (m *DiagnosticMapper) ReportToModel(r *entity.DiagnosticReport) *model.DiagnosticReport {
	if r == nil {
		return nil
	}
	return &model.DiagnosticReport{
		Id:            r.Id,
		StudentId:     r.StudentId,
		Category:      r.Category,
		Diagnosis:     r.Diagnosis,
		Evidence:      encodeJSON(r.Evidence),
		Intervention:  r.Intervention,
		Confidence:    r.Confidence,
		Tags:          datatypes.JSONSlice[string](r.Tags),
		LowConfidence: r.LowConfidence,
		Ungrounded:    r.Ungrounded,
		RuleCategory:  r.RuleCategory,
		ParseTier:     r.ParseTier,
		RiskScore:     r.RiskScore,
		RiskLevel:     r.RiskLevel,
		CreatedAt:     r.CreatedAt,
	}
}
