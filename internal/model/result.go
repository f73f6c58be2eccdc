package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"
)

// swagger:model TestResult
type TestResult struct {
	UUIDBase
	SessionID      string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"sessionId"`
	UserID         uint            `gorm:"index;not null" json:"userId"`
	SurveyID       uint            `gorm:"index;not null" json:"surveyId"`
	Score          decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	CorrectAnswers int             `json:"correctAnswers"`
	IsPassed       bool            `json:"isPassed"`
	Grade          string          `gorm:"size:2" json:"grade"`
	TimeSpent      int             `json:"timeSpent"` // seconds of budget consumed
	AttemptNumber  int             `json:"attemptNumber"`
	CertificateID  *string         `gorm:"type:varchar(36)" json:"certificateId,omitempty"`
	CompletedAt    time.Time       `json:"completedAt"`

	SectionScores []SectionScore `gorm:"foreignKey:ResultID" json:"sectionScores,omitempty"`
	// Questions referenced by answers but missing from the bank at scoring time.
	ExcludedQuestionIDs []uint `gorm:"-" json:"-"`
}

func (TestResult) TableName() string {
	return "test_results"
}

type SectionScore struct {
	BaseModel
	ResultID       string          `gorm:"type:varchar(36);index;not null" json:"resultId"`
	SectionID      uint            `gorm:"index" json:"sectionId"`
	SectionTitle   string          `gorm:"size:255" json:"sectionTitle"`
	Score          decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	CorrectAnswers int             `json:"correctAnswers"`
	PointsEarned   int             `json:"pointsEarned"`
	PointsPossible int             `json:"pointsPossible"`
}

func (SectionScore) TableName() string {
	return "section_scores"
}
