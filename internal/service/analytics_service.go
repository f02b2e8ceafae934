// FILE: internal/service/analytics_service.go
package service

import (
	"context"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/pkg/ai/diagnostic"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/events"
)

const (
	analyticsModule = "AnalyticsService"

	defaultReportLimit = 20
	maxReportLimit     = 100
)

type IAnalyticsService interface {
	Audit(ctx context.Context, req *dto.AuditRequest) (*dto.DiagnosticReportResponse, error)
	Reports(ctx context.Context, studentId string, limit int) ([]*dto.DiagnosticReportResponse, error)
}

type analyticsService struct {
	uowFactory     unitofwork.RepositoryFactory
	analyzer       *diagnostic.Analyzer
	model          gateway.ModelGateway
	eventPublisher events.Publisher
	logger         logger.ILogger
}

func NewAnalyticsService(
	uowFactory unitofwork.RepositoryFactory,
	analyzer *diagnostic.Analyzer,
	model gateway.ModelGateway,
	eventPublisher events.Publisher,
	log logger.ILogger,
) IAnalyticsService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &analyticsService{
		uowFactory:     uowFactory,
		analyzer:       analyzer,
		model:          model,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (s *analyticsService) Audit(ctx context.Context, req *dto.AuditRequest) (*dto.DiagnosticReportResponse, error) {
	if err := s.model.Ready(); err != nil {
		return nil, err
	}

	entries := make([]diagnostic.TraceEntry, len(req.TraceLogs))
	for i, e := range req.TraceLogs {
		entries[i] = diagnostic.TraceEntry{
			Timestamp:  e.Timestamp,
			ActionType: e.ActionType,
			Phase:      e.Phase,
			Detail:     e.Detail,
		}
	}

	report, err := s.analyzer.Analyze(ctx, diagnostic.Input{
		StudentID: req.StudentId,
		RiskScore: req.RiskScore,
		RiskLevel: req.RiskLevel,
		Metrics:   req.CognitiveMetrics,
		Entries:   entries,
	})
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DiagnosticReportRepository().Create(ctx, report); err != nil {
		return nil, err
	}

	err = s.eventPublisher.Publish(ctx, events.New(events.DiagnosisReady, map[string]interface{}{
		"report_id":      report.Id.String(),
		"student_id":     report.StudentId,
		"category":       report.Category,
		"confidence":     report.Confidence,
		"low_confidence": report.LowConfidence,
		"ungrounded":     report.Ungrounded,
		"risk_level":     report.RiskLevel,
	}))
	if err != nil {
		s.logger.Warn(analyticsModule, "Failed to publish diagnosis", map[string]interface{}{
			"report_id": report.Id.String(),
			"error":     err.Error(),
		})
	}

	return reportResponse(report), nil
}

func (s *analyticsService) Reports(ctx context.Context, studentId string, limit int) ([]*dto.DiagnosticReportResponse, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	reports, err := uow.DiagnosticReportRepository().FindAllByStudent(ctx, studentId, limit)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DiagnosticReportResponse, len(reports))
	for i, r := range reports {
		res[i] = reportResponse(r)
	}
	return res, nil
}

func reportResponse(r *entity.DiagnosticReport) *dto.DiagnosticReportResponse {
	evidence := make([]string, len(r.Evidence))
	checks := make([]dto.EvidenceResponse, len(r.Evidence))
	for i, e := range r.Evidence {
		evidence[i] = e.Text
		checks[i] = dto.EvidenceResponse{Text: e.Text, Grounded: e.Grounded}
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	return &dto.DiagnosticReportResponse{
		Id:            r.Id,
		StudentId:     r.StudentId,
		Category:      r.Category,
		Diagnosis:     r.Diagnosis,
		Evidence:      evidence,
		EvidenceCheck: checks,
		Intervention:  r.Intervention,
		Confidence:    r.Confidence,
		Tags:          tags,
		LowConfidence: r.LowConfidence,
		Ungrounded:    r.Ungrounded,
		RuleCategory:  r.RuleCategory,
		RiskScore:     r.RiskScore,
		RiskLevel:     r.RiskLevel,
		CreatedAt:     r.CreatedAt,
	}
}
