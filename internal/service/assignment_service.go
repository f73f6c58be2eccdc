package service

import (
	"context"
	"strconv"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/pkg/logger"

	"go.uber.org/zap"
)

// AssignmentService grants candidates access to surveys and exposes the
// audit trail to administrators.
type AssignmentService struct {
	Surveys     SurveyStore
	Assignments AssignmentStore
	Users       UserStore
	Audit       *AuditService
	Trail       AuditReader
}

func NewAssignmentService(surveys SurveyStore, assignments AssignmentStore, users UserStore, audit *AuditService, trail AuditReader) *AssignmentService {
	return &AssignmentService{
		Surveys:     surveys,
		Assignments: assignments,
		Users:       users,
		Audit:       audit,
		Trail:       trail,
	}
}

// Assign is idempotent; assigning an already assigned pair changes nothing.
func (s *AssignmentService) Assign(ctx context.Context, surveyID, userID, assignedBy uint) error {
	if _, err := s.Surveys.FindSurvey(ctx, surveyID); err != nil {
		return err
	}
	if _, err := s.Users.FindByID(ctx, userID); err != nil {
		return err
	}

	assigned, err := s.Assignments.IsAssigned(ctx, surveyID, userID)
	if err != nil {
		return err
	}
	if assigned {
		return nil
	}

	if err := s.Assignments.Assign(ctx, &model.SurveyAssignment{
		SurveyID:   surveyID,
		UserID:     userID,
		AssignedBy: assignedBy,
	}); err != nil {
		return err
	}

	s.Audit.Record(ctx, &assignedBy, AuditSurveyAssigned, model.AuditEntitySurvey,
		strconv.FormatUint(uint64(surveyID), 10), map[string]interface{}{"userId": userID})
	logger.Log.Info("Survey assigned", zap.Uint("surveyId", surveyID), zap.Uint("userId", userID))
	return nil
}

func (s *AssignmentService) AuditTrail(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error) {
	return s.Trail.ListForEntity(ctx, entityType, entityID)
}
