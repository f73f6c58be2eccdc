package service

import (
	"context"
	"encoding/json"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	AuditSessionStarted     = "session.started"
	AuditSessionPaused      = "session.paused"
	AuditSessionResumed     = "session.resumed"
	AuditSessionCompleted   = "session.completed"
	AuditSessionTimedOut    = "session.timeout"
	AuditSessionFinalizable = "session.finalize_pending"
	AuditCertificateIssued  = "certificate.issued"
	AuditCertificateRevoked = "certificate.revoked"
	AuditCertificateExpired = "certificate.expired"
	AuditSurveyAssigned     = "survey.assigned"
)

type AuditService struct {
	Store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{Store: store}
}

// Record appends an audit row. Failures are logged and swallowed so that an
// audit outage never blocks a transition that has already been committed.
func (s *AuditService) Record(ctx context.Context, actorID *uint, action, entityType, entityID string, details interface{}) {
	if s == nil || s.Store == nil {
		return
	}

	entry := &model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			logger.Log.Warn("audit details not serializable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Details = raw
		}
	}

	if err := s.Store.Append(ctx, entry); err != nil {
		logger.Log.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("entityType", entityType),
			zap.String("entityId", entityID),
			zap.Error(err))
	}
}
