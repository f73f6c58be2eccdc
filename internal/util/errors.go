package util

import "errors"

// Precondition violations, reported to callers as typed errors.
var (
	ErrAttemptLimitExceeded      = errors.New("attempt limit exceeded")
	ErrSurveyInactive            = errors.New("survey inactive")
	ErrSurveyNotAssigned         = errors.New("survey not assigned to user")
	ErrSessionNotActive          = errors.New("session not active")
	ErrUnknownQuestion           = errors.New("unknown question")
	ErrInvalidOption             = errors.New("option does not belong to question")
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrPauseNotAllowed           = errors.New("pause not allowed")
	ErrAutoSaveDisabled          = errors.New("auto save disabled")
	ErrNavigationLocked          = errors.New("question navigation locked")
	ErrCertificateIssuanceFailed = errors.New("certificate issuance failed")
	ErrResultNotPassed           = errors.New("result not passed")
	ErrPermissionDenied          = errors.New("permission denied")
)

// Lookups.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrSurveyNotFound      = errors.New("survey not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrResultNotFound      = errors.New("result not found")
	ErrCertificateNotFound = errors.New("certificate not found")
)

// ErrDuplicateCertificateNumber is returned by the certificate store when the
// unique constraint on the number rejects an insert.
var ErrDuplicateCertificateNumber = errors.New("duplicate certificate number")
