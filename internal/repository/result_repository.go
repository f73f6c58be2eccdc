package repository

import (
	"context"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) FindByID(ctx context.Context, id string) (*model.TestResult, error) {
	var res model.TestResult
	if err := r.DB.WithContext(ctx).Preload("SectionScores").First(&res, "id = ?", id).Error; err != nil {
		return nil, notFound(err, util.ErrResultNotFound)
	}
	return &res, nil
}

func (r *ResultRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.TestResult, error) {
	var res model.TestResult
	if err := r.DB.WithContext(ctx).Preload("SectionScores").First(&res, "session_id = ?", sessionID).Error; err != nil {
		return nil, notFound(err, util.ErrResultNotFound)
	}
	return &res, nil
}

// ListForUsers returns results of the given users, newest first. surveyID 0 means all surveys.
func (r *ResultRepository) ListForUsers(ctx context.Context, surveyID uint, userIDs []uint) ([]model.TestResult, error) {
	var results []model.TestResult
	if len(userIDs) == 0 {
		return results, nil
	}
	q := r.DB.WithContext(ctx).Where("user_id IN ?", userIDs)
	if surveyID != 0 {
		q = q.Where("survey_id = ?", surveyID)
	}
	err := q.Preload("SectionScores").Order("completed_at desc").Find(&results).Error
	return results, err
}

func (r *ResultRepository) AttachCertificate(ctx context.Context, resultID, certificateID string) error {
	return r.DB.WithContext(ctx).Model(&model.TestResult{}).
		Where("id = ? AND certificate_id IS NULL", resultID).
		Update("certificate_id", certificateID).Error
}
