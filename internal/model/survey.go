package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// swagger:model Survey
type Survey struct {
	BaseModel
	Code                    string          `gorm:"size:32;unique;not null" json:"code"`
	Title                   string          `gorm:"size:255;not null" json:"title"`
	Description             string          `gorm:"type:text" json:"description"`
	Duration                int             `gorm:"not null" json:"duration"` // minutes
	PassingScore            decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"passingScore"`
	MaxAttempts             int             `gorm:"default:1" json:"maxAttempts"` // 0 = unlimited
	IsActive                bool            `gorm:"default:true" json:"isActive"`
	StartDate               *time.Time      `json:"startDate,omitempty"`
	EndDate                 *time.Time      `json:"endDate,omitempty"`
	AllowPause              bool            `gorm:"default:true" json:"allowPause"`
	CertificateValidityDays int             `gorm:"default:0" json:"certificateValidityDays"` // 0 = never expires
	CreatedBy               uint            `gorm:"index" json:"createdBy"`

	Sections []Section `gorm:"foreignKey:SurveyID" json:"sections,omitempty"`
}

func (Survey) TableName() string {
	return "surveys"
}

// IsOpenAt reports whether the survey accepts new sessions at t.
func (s *Survey) IsOpenAt(t time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.StartDate != nil && t.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && t.After(*s.EndDate) {
		return false
	}
	return true
}

type Section struct {
	BaseModel
	SurveyID  uint       `gorm:"index;not null" json:"surveyId"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Order     int        `gorm:"default:0" json:"order"`
	Questions []Question `gorm:"foreignKey:SectionID" json:"questions,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}

type Question struct {
	BaseModel
	SectionID  uint     `gorm:"index;not null" json:"sectionId"`
	Text       string   `gorm:"type:text;not null" json:"text"`
	Type       string   `gorm:"size:32;not null" json:"type"`
	Difficulty string   `gorm:"size:16;default:'medium'" json:"difficulty"`
	Points     int      `gorm:"default:1" json:"points"`
	Order      int      `gorm:"default:0" json:"order"`
	Options    []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOptionIDs returns the ids of every option flagged correct.
func (q *Question) CorrectOptionIDs() OptionIDs {
	ids := make(OptionIDs, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids.Normalize()
}

// HasOption reports whether id belongs to this question.
func (q *Question) HasOption(id uint) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

type Option struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (Option) TableName() string {
	return "options"
}

type SurveyAssignment struct {
	BaseModel
	SurveyID   uint `gorm:"uniqueIndex:idx_assignment_survey_user;not null" json:"surveyId"`
	UserID     uint `gorm:"uniqueIndex:idx_assignment_survey_user;not null" json:"userId"`
	AssignedBy uint `json:"assignedBy"`
}

func (SurveyAssignment) TableName() string {
	return "survey_assignments"
}
