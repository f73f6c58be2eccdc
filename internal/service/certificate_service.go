package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"
	"tuteck_exam_backend/pkg/clock"
	"tuteck_exam_backend/pkg/logger"
	"tuteck_exam_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const defaultSequenceWidth = 6

// issueAttempts is the first try plus one retry after a number collision.
const issueAttempts = 2

var certificateTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Certificate {{.Number}}</title></head>
<body>
<h1>Certificate of Completion</h1>
<p>This certifies that <strong>{{.Holder}}</strong> passed <strong>{{.Survey}}</strong>
with a score of {{.Score}} (grade {{.Grade}}).</p>
<p>Certificate number: {{.Number}}</p>
<p>Issued: {{.IssuedAt}}{{if .ValidUntil}} &middot; Valid until: {{.ValidUntil}}{{end}}</p>
</body>
</html>
`))

type certificateView struct {
	Number     string
	Holder     string
	Survey     string
	Score      string
	Grade      string
	IssuedAt   string
	ValidUntil string
}

type CertificateService struct {
	Certs         CertificateStore
	Results       ResultStore
	Surveys       SurveyStore
	Users         UserStore
	Documents     DocumentStore
	Audit         *AuditService
	Clock         clock.Clock
	SequenceWidth int

	// serializes number allocation inside this process; the unique index
	// covers other replicas.
	mu sync.Mutex
}

func NewCertificateService(
	certs CertificateStore,
	results ResultStore,
	surveys SurveyStore,
	users UserStore,
	documents DocumentStore,
	audit *AuditService,
	clk clock.Clock,
	sequenceWidth int,
) *CertificateService {
	if sequenceWidth <= 0 {
		sequenceWidth = defaultSequenceWidth
	}
	return &CertificateService{
		Certs:         certs,
		Results:       results,
		Surveys:       surveys,
		Users:         users,
		Documents:     documents,
		Audit:         audit,
		Clock:         clk,
		SequenceWidth: sequenceWidth,
	}
}

// CertificateNumber formats {CODE}-{YYYY}-{sequence}.
func CertificateNumber(code string, year, seq, width int) string {
	return fmt.Sprintf("%s%0*d", numberPrefix(code, year), width, seq)
}

func numberPrefix(code string, year int) string {
	return fmt.Sprintf("%s-%d-", strings.ToUpper(strings.TrimSpace(code)), year)
}

// Issue creates the certificate for a passing result. Issuing again for the
// same result returns the existing certificate.
func (s *CertificateService) Issue(ctx context.Context, result *model.TestResult, survey *model.Survey) (*model.Certificate, error) {
	if !result.IsPassed {
		return nil, util.ErrResultNotPassed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Certs.FindByResultID(ctx, result.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.Clock.Now()
	prefix := numberPrefix(survey.Code, now.Year())

	var lastSeq int
	for attempt := 0; attempt < issueAttempts; attempt++ {
		seq, err := s.Certs.LastSequence(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if seq < lastSeq {
			seq = lastSeq
		}
		seq++
		lastSeq = seq

		cert := &model.Certificate{
			ResultID:          result.ID,
			UserID:            result.UserID,
			SurveyID:          result.SurveyID,
			CertificateNumber: CertificateNumber(survey.Code, now.Year(), seq, s.SequenceWidth),
			Sequence:          seq,
			IssuedAt:          now,
			Status:            model.CertificateActive,
		}
		cert.ID = model.GenerateUUID()
		if survey.CertificateValidityDays > 0 {
			until := now.AddDate(0, 0, survey.CertificateValidityDays)
			cert.ValidUntil = &until
		}

		err = s.Certs.Create(ctx, cert)
		if errors.Is(err, util.ErrDuplicateCertificateNumber) {
			// a concurrent issue for the same result trips the result index too
			if other, findErr := s.Certs.FindByResultID(ctx, result.ID); findErr == nil && other != nil {
				return other, nil
			}
			monitoring.IntegrityWarnings.WithLabelValues("certificate_number_collision").Inc()
			logger.Log.Warn("Certificate number collision, retrying",
				zap.String("number", cert.CertificateNumber),
				zap.String("resultId", result.ID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.Results.AttachCertificate(ctx, result.ID, cert.ID); err != nil {
			return nil, err
		}
		result.CertificateID = &cert.ID

		monitoring.CertificatesIssued.Inc()
		s.Audit.Record(ctx, nil, AuditCertificateIssued, model.AuditEntityCertificate, cert.ID, map[string]interface{}{
			"number":   cert.CertificateNumber,
			"resultId": result.ID,
		})
		logger.Log.Info("Certificate issued",
			zap.String("number", cert.CertificateNumber),
			zap.Uint("userId", cert.UserID))
		return cert, nil
	}

	return nil, fmt.Errorf("%w: number collision persisted for result %s", util.ErrCertificateIssuanceFailed, result.ID)
}

// IssueForResult loads the result and its survey and issues. Used to retry
// issuance when it failed after the result was already durable.
func (s *CertificateService) IssueForResult(ctx context.Context, resultID string) (*model.Certificate, error) {
	result, err := s.Results.FindByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	survey, err := s.Surveys.FindSurvey(ctx, result.SurveyID)
	if err != nil {
		return nil, err
	}
	return s.Issue(ctx, result, survey)
}

func (s *CertificateService) Get(ctx context.Context, id string) (*model.Certificate, error) {
	return s.Certs.FindByID(ctx, id)
}

// Revoke is irreversible. Revoking an already revoked certificate is a no-op.
func (s *CertificateService) Revoke(ctx context.Context, id, reason string, revokedBy uint) (*model.Certificate, error) {
	cert, err := s.Certs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status == model.CertificateRevoked {
		return cert, nil
	}
	if cert.Status != model.CertificateActive {
		return nil, fmt.Errorf("%w: certificate is %s", util.ErrInvalidTransition, cert.Status)
	}

	now := s.Clock.Now()
	ok, err := s.Certs.Revoke(ctx, id, now, revokedBy, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race with another revoke or the expiry sweep
		current, err := s.Certs.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == model.CertificateRevoked {
			return current, nil
		}
		return nil, fmt.Errorf("%w: certificate is %s", util.ErrInvalidTransition, current.Status)
	}
	cert.Status = model.CertificateRevoked
	cert.RevokedAt = &now
	cert.RevokedBy = &revokedBy
	cert.RevocationReason = reason

	s.Audit.Record(ctx, &revokedBy, AuditCertificateRevoked, model.AuditEntityCertificate, cert.ID, map[string]interface{}{
		"reason": reason,
	})
	return cert, nil
}

// ExpireCertificate moves an active certificate past its validity window to
// expired. It reports whether anything changed.
func ExpireCertificate(cert *model.Certificate, now time.Time) bool {
	if cert.Status != model.CertificateActive || cert.ValidUntil == nil {
		return false
	}
	if now.Before(*cert.ValidUntil) {
		return false
	}
	cert.Status = model.CertificateExpired
	return true
}

// ExpireDue applies ExpireCertificate to every due certificate. It is driven
// by the background scheduler, not by Issue.
func (s *CertificateService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	certs, err := s.Certs.ListExpiring(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range certs {
		cert := &certs[i]
		if !ExpireCertificate(cert, now) {
			continue
		}
		ok, err := s.Certs.Expire(ctx, cert.ID, now)
		if err != nil {
			logger.Log.Error("Failed to expire certificate", zap.String("id", cert.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		s.Audit.Record(ctx, nil, AuditCertificateExpired, model.AuditEntityCertificate, cert.ID, nil)
		expired++
	}
	return expired, nil
}

// RecordDownload bumps the download counter and returns the document URL,
// rendering and storing the document on first use. Status is untouched.
func (s *CertificateService) RecordDownload(ctx context.Context, id string) (*model.Certificate, string, error) {
	cert, err := s.Certs.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if cert.Status == model.CertificateRevoked {
		return nil, "", fmt.Errorf("%w: certificate revoked", util.ErrInvalidTransition)
	}

	if cert.DocumentPath == "" {
		key := "certificates/" + cert.CertificateNumber + ".html"
		doc, err := s.render(ctx, cert)
		if err != nil {
			return nil, "", err
		}
		if _, err := s.Documents.PutBytes(ctx, key, doc, util.MimeHTML); err != nil {
			return nil, "", fmt.Errorf("store certificate document: %w", err)
		}
		if err := s.Certs.SetDocumentPath(ctx, cert.ID, key); err != nil {
			return nil, "", err
		}

		// a revoke may have landed while the document was rendered
		if cert, err = s.Certs.FindByID(ctx, id); err != nil {
			return nil, "", err
		}
		if cert.Status == model.CertificateRevoked {
			return nil, "", fmt.Errorf("%w: certificate revoked", util.ErrInvalidTransition)
		}
	}

	if err := s.Certs.IncrementDownloads(ctx, cert.ID); err != nil {
		return nil, "", err
	}
	cert.DownloadCount++

	return cert, s.Documents.GetURL(cert.DocumentPath), nil
}

func (s *CertificateService) render(ctx context.Context, cert *model.Certificate) ([]byte, error) {
	result, err := s.Results.FindByID(ctx, cert.ResultID)
	if err != nil {
		return nil, err
	}
	survey, err := s.Surveys.FindSurvey(ctx, cert.SurveyID)
	if err != nil {
		return nil, err
	}
	holder := fmt.Sprintf("user #%d", cert.UserID)
	if u, err := s.Users.FindByID(ctx, cert.UserID); err == nil {
		holder = u.Name
	}

	view := certificateView{
		Number:   cert.CertificateNumber,
		Holder:   holder,
		Survey:   survey.Title,
		Score:    result.Score.StringFixed(2),
		Grade:    result.Grade,
		IssuedAt: cert.IssuedAt.Format(util.DateFormat),
	}
	if cert.ValidUntil != nil {
		view.ValidUntil = cert.ValidUntil.Format(util.DateFormat)
	}

	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
