package repository

import (
	"context"
	"errors"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"gorm.io/gorm"
)

type SurveyRepository struct {
	DB *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) *SurveyRepository {
	return &SurveyRepository{DB: db}
}

func (r *SurveyRepository) FindSurvey(ctx context.Context, id uint) (*model.Survey, error) {
	var s model.Survey
	if err := r.DB.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFound(err, util.ErrSurveyNotFound)
	}
	return &s, nil
}

// LoadQuestionBank reads the survey with its sections, questions and options.
// Soft-deleted questions are left out, which is how the scorer notices them.
func (r *SurveyRepository) LoadQuestionBank(ctx context.Context, surveyID uint) (*model.QuestionBank, error) {
	var s model.Survey
	err := r.DB.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("`order` asc, id asc") }).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB { return db.Order("`order` asc, id asc") }).
		Preload("Sections.Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("`order` asc, id asc") }).
		First(&s, surveyID).Error
	if err != nil {
		return nil, notFound(err, util.ErrSurveyNotFound)
	}
	return model.NewQuestionBank(&s), nil
}

func (r *SurveyRepository) IsAssigned(ctx context.Context, surveyID, userID uint) (bool, error) {
	var a model.SurveyAssignment
	err := r.DB.WithContext(ctx).Where("survey_id = ? AND user_id = ?", surveyID, userID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Assign treats an existing assignment for the pair as success.
func (r *SurveyRepository) Assign(ctx context.Context, a *model.SurveyAssignment) error {
	err := r.DB.WithContext(ctx).Create(a).Error
	if isDuplicateKey(err) {
		return nil
	}
	return err
}
