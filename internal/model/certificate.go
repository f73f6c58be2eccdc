package model

import "time"

type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateRevoked CertificateStatus = "revoked"
	CertificateExpired CertificateStatus = "expired"
)

// swagger:model Certificate
type Certificate struct {
	UUIDBase
	ResultID          string            `gorm:"type:varchar(36);uniqueIndex;not null" json:"resultId"`
	UserID            uint              `gorm:"index;not null" json:"userId"`
	SurveyID          uint              `gorm:"index;not null" json:"surveyId"`
	CertificateNumber string            `gorm:"size:64;uniqueIndex;not null" json:"certificateNumber"`
	Sequence          int               `gorm:"index" json:"-"`
	IssuedAt          time.Time         `json:"issuedAt"`
	ValidUntil        *time.Time        `json:"validUntil,omitempty"`
	DownloadCount     int               `gorm:"default:0" json:"downloadCount"`
	Status            CertificateStatus `gorm:"size:20;index;not null" json:"status"`
	RevokedAt         *time.Time        `json:"revokedAt,omitempty"`
	RevokedBy         *uint             `json:"revokedBy,omitempty"`
	RevocationReason  string            `gorm:"type:text" json:"revocationReason,omitempty"`
	DocumentPath      string            `gorm:"size:255" json:"documentPath,omitempty"`
}

func (Certificate) TableName() string {
	return "certificates"
}
