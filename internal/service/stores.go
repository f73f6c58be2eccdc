package service

import (
	"context"
	"time"

	"tuteck_exam_backend/internal/model"
)

// The engine depends only on these narrow views of storage; the gorm
// repositories satisfy them in production.

type SurveyStore interface {
	FindSurvey(ctx context.Context, id uint) (*model.Survey, error)
	LoadQuestionBank(ctx context.Context, surveyID uint) (*model.QuestionBank, error)
	IsAssigned(ctx context.Context, surveyID, userID uint) (bool, error)
}

type AssignmentStore interface {
	IsAssigned(ctx context.Context, surveyID, userID uint) (bool, error)
	Assign(ctx context.Context, a *model.SurveyAssignment) error
}

type SessionStore interface {
	FindByID(ctx context.Context, id string) (*model.TestSession, error)
	FindActive(ctx context.Context, userID, surveyID uint) (*model.TestSession, error)
	CountFinished(ctx context.Context, userID, surveyID uint) (int64, error)
	Create(ctx context.Context, s *model.TestSession) error
	Update(ctx context.Context, s *model.TestSession) error
	FindAnswer(ctx context.Context, sessionID string, questionID uint) (*model.Answer, error)
	SaveAnswer(ctx context.Context, s *model.TestSession, a *model.Answer) error
	ListAnswers(ctx context.Context, sessionID string) ([]model.Answer, error)
	ListByStatus(ctx context.Context, statuses ...model.SessionStatus) ([]model.TestSession, error)
	Finalize(ctx context.Context, s *model.TestSession, answers []model.Answer, result *model.TestResult) error
}

type ResultStore interface {
	FindByID(ctx context.Context, id string) (*model.TestResult, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.TestResult, error)
	ListForUsers(ctx context.Context, surveyID uint, userIDs []uint) ([]model.TestResult, error)
	AttachCertificate(ctx context.Context, resultID, certificateID string) error
}

type CertificateStore interface {
	Create(ctx context.Context, c *model.Certificate) error
	Revoke(ctx context.Context, id string, at time.Time, by uint, reason string) (bool, error)
	Expire(ctx context.Context, id string, now time.Time) (bool, error)
	SetDocumentPath(ctx context.Context, id, path string) error
	FindByID(ctx context.Context, id string) (*model.Certificate, error)
	FindByResultID(ctx context.Context, resultID string) (*model.Certificate, error)
	LastSequence(ctx context.Context, prefix string) (int, error)
	ListExpiring(ctx context.Context, now time.Time) ([]model.Certificate, error)
	IncrementDownloads(ctx context.Context, id string) error
}

type HierarchyStore interface {
	ListHierarchy(ctx context.Context) ([]model.HierarchyNode, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *model.AuditLog) error
}

type AuditReader interface {
	ListForEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error)
}

// DocumentStore is the slice of StorageService the certificate issuer needs.
type DocumentStore interface {
	PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
	GetURL(key string) string
}
