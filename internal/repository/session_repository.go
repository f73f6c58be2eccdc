package repository

import (
	"context"
	"errors"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*model.TestSession, error) {
	var s model.TestSession
	if err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err, util.ErrSessionNotFound)
	}
	return &s, nil
}

// FindActive returns nil, nil when the pair has no in_progress or paused session.
func (r *SessionRepository) FindActive(ctx context.Context, userID, surveyID uint) (*model.TestSession, error) {
	var s model.TestSession
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND survey_id = ? AND status IN ?", userID, surveyID,
			[]model.SessionStatus{model.SessionInProgress, model.SessionPaused}).
		Order("start_time desc").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) CountFinished(ctx context.Context, userID, surveyID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.TestSession{}).
		Where("user_id = ? AND survey_id = ? AND status IN ?", userID, surveyID,
			[]model.SessionStatus{model.SessionCompleted, model.SessionTimeout}).
		Count(&count).Error
	return count, err
}

func (r *SessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SessionRepository) Update(ctx context.Context, s *model.TestSession) error {
	return r.DB.WithContext(ctx).Save(s).Error
}

// FindAnswer returns nil, nil when the question has not been answered in the session.
func (r *SessionRepository) FindAnswer(ctx context.Context, sessionID string, questionID uint) (*model.Answer, error) {
	var a model.Answer
	err := r.DB.WithContext(ctx).Where("session_id = ? AND question_id = ?", sessionID, questionID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAnswer upserts the answer on (session_id, question_id) and saves the session in one transaction.
func (r *SessionRepository) SaveAnswer(ctx context.Context, s *model.TestSession, a *model.Answer) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_option_ids", "time_spent", "is_answered", "is_flagged", "answered_at", "updated_at",
			}),
		}).Create(a).Error
		if err != nil {
			return err
		}
		return tx.Save(s).Error
	})
}

func (r *SessionRepository) ListAnswers(ctx context.Context, sessionID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

func (r *SessionRepository) ListByStatus(ctx context.Context, statuses ...model.SessionStatus) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.DB.WithContext(ctx).Where("status IN ?", statuses).Find(&sessions).Error
	return sessions, err
}

// Finalize writes the terminal session, the per-answer correctness flags, the
// result and its section scores atomically. Nothing is visible on failure.
func (r *SessionRepository) Finalize(ctx context.Context, s *model.TestSession, answers []model.Answer, result *model.TestResult) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sections := result.SectionScores
		result.SectionScores = nil
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		for i := range sections {
			sections[i].ResultID = result.ID
		}
		if len(sections) > 0 {
			if err := tx.Create(&sections).Error; err != nil {
				return err
			}
		}
		result.SectionScores = sections

		for _, a := range answers {
			if a.ID == 0 {
				continue
			}
			if err := tx.Model(&model.Answer{}).Where("id = ?", a.ID).Update("is_correct", a.IsCorrect).Error; err != nil {
				return err
			}
		}

		s.ResultID = &result.ID
		return tx.Save(s).Error
	})
}
