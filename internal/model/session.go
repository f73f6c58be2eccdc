package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionPaused     SessionStatus = "paused"
	SessionCompleted  SessionStatus = "completed"
	SessionTimeout    SessionStatus = "timeout"
)

// IsActive reports whether the session still counts as the live attempt for its pair.
func (s SessionStatus) IsActive() bool {
	return s == SessionInProgress || s == SessionPaused
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionTimeout
}

const (
	PauseReasonManual  = "manual"
	PauseReasonNetwork = "network"
)

// swagger:model TestSession
type TestSession struct {
	UUIDBase
	UserID             uint          `gorm:"index:idx_session_user_survey;not null" json:"userId"`
	SurveyID           uint          `gorm:"index:idx_session_user_survey;not null" json:"surveyId"`
	Status             SessionStatus `gorm:"size:20;index;not null" json:"status"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            *time.Time    `json:"endTime,omitempty"`
	TimeRemaining      int           `json:"timeRemaining"` // seconds, as of LastTickAt
	LastTickAt         time.Time     `json:"lastTickAt"`
	CurrentQuestionID  *uint         `json:"currentQuestionId,omitempty"`
	AttemptNumber      int           `gorm:"not null" json:"attemptNumber"`
	TotalPauseDuration int           `gorm:"default:0" json:"totalPauseDuration"` // seconds
	PauseTime          *time.Time    `json:"pauseTime,omitempty"`
	ResumeTime         *time.Time    `json:"resumeTime,omitempty"`
	PauseReason        string        `gorm:"size:20" json:"pauseReason,omitempty"`
	FinalizePending    bool          `gorm:"default:false" json:"finalizePending"`
	BudgetExhaustedAt  *time.Time    `json:"budgetExhaustedAt,omitempty"`

	Score    *decimal.Decimal `gorm:"type:decimal(5,2)" json:"score,omitempty"`
	IsPassed *bool            `json:"isPassed,omitempty"`
	ResultID *string          `gorm:"type:varchar(36)" json:"resultId,omitempty"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// swagger:model Answer
type Answer struct {
	BaseModel
	SessionID         string     `gorm:"type:varchar(36);uniqueIndex:idx_answer_session_question;not null" json:"sessionId"`
	QuestionID        uint       `gorm:"uniqueIndex:idx_answer_session_question;not null" json:"questionId"`
	SelectedOptionIDs OptionIDs  `gorm:"type:json" json:"selectedOptionIds"`
	IsCorrect         bool       `gorm:"default:false" json:"isCorrect"`
	TimeSpent         int        `gorm:"default:0" json:"timeSpent"` // seconds
	IsAnswered        bool       `gorm:"default:false" json:"isAnswered"`
	IsFlagged         bool       `gorm:"default:false" json:"isFlagged"`
	AnsweredAt        *time.Time `json:"answeredAt,omitempty"`
}

func (Answer) TableName() string {
	return "answers"
}
