package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) passedResult(id string, surveyID uint) *model.TestResult {
	r := model.TestResult{
		SessionID: "session-" + id,
		UserID:    candidateID,
		SurveyID:  surveyID,
		Score:     decimal.NewFromInt(88),
		IsPassed:  true,
		Grade:     model.GradeB,
	}
	r.ID = id
	f.db.mu.Lock()
	f.db.results[id] = r
	f.db.mu.Unlock()
	return &r
}

func TestCertificateNumberFormat(t *testing.T) {
	assert.Equal(t, "SAFE-2026-000042", CertificateNumber("safe", 2026, 42, 6))
	assert.Equal(t, "FIRE-2027-0007", CertificateNumber(" Fire ", 2027, 7, 4))
	assert.Equal(t, "X-2026-1234567", CertificateNumber("x", 2026, 1234567, 6))
}

func TestIssueSequencesAndIdempotence(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, validityDays: 365, sections: []int{1}})
	ctx := context.Background()

	r1 := f.passedResult("r1", 1)
	first, err := f.certs.Issue(ctx, r1, survey)
	require.NoError(t, err)
	second, err := f.certs.Issue(ctx, f.passedResult("r2", 1), survey)
	require.NoError(t, err)

	assert.Equal(t, "SAFE-2026-000001", first.CertificateNumber)
	assert.Equal(t, "SAFE-2026-000002", second.CertificateNumber)
	require.NotNil(t, first.ValidUntil)
	assert.Equal(t, epoch.AddDate(0, 0, 365), *first.ValidUntil)
	assert.Equal(t, epoch, first.IssuedAt)

	again, err := f.certs.Issue(ctx, r1, survey)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.db.certs, 2)

	stored, err := memResults{f.db}.FindByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, stored.CertificateID)
	assert.Equal(t, first.ID, *stored.CertificateID)
}

func TestIssueRejectsFailedResult(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})

	r := f.passedResult("r1", 1)
	r.IsPassed = false
	_, err := f.certs.Issue(context.Background(), r, survey)
	assert.ErrorIs(t, err, util.ErrResultNotPassed)
	assert.Empty(t, f.db.certs)
}

func TestIssueRetriesOnceAfterCollision(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})
	ctx := context.Background()

	// another replica takes the number this one is about to use
	collided := false
	f.db.certCreate = func(c *model.Certificate) error {
		if !collided {
			collided = true
			return util.ErrDuplicateCertificateNumber
		}
		return nil
	}

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)
	assert.Equal(t, "SAFE-2026-000002", cert.CertificateNumber)
}

func TestIssueFailsWhenCollisionPersists(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})

	calls := 0
	f.db.certCreate = func(c *model.Certificate) error {
		calls++
		return util.ErrDuplicateCertificateNumber
	}

	_, err := f.certs.Issue(context.Background(), f.passedResult("r1", 1), survey)
	assert.ErrorIs(t, err, util.ErrCertificateIssuanceFailed)
	assert.Equal(t, 2, calls)
	assert.Empty(t, f.db.certs)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	revoked, err := f.certs.Revoke(ctx, cert.ID, "exam irregularity", 2)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateRevoked, revoked.Status)
	assert.Equal(t, "exam irregularity", revoked.RevocationReason)
	require.NotNil(t, revoked.RevokedBy)
	assert.Equal(t, uint(2), *revoked.RevokedBy)
	assert.Equal(t, epoch.Add(time.Hour), *revoked.RevokedAt)

	again, err := f.certs.Revoke(ctx, cert.ID, "other", 3)
	require.NoError(t, err)
	assert.Equal(t, "exam irregularity", again.RevocationReason)

	assert.False(t, ExpireCertificate(again, epoch.AddDate(5, 0, 0)))

	_, _, err = f.certs.RecordDownload(ctx, cert.ID)
	assert.ErrorIs(t, err, util.ErrInvalidTransition)

	_, err = f.certs.Revoke(ctx, "missing", "x", 1)
	assert.ErrorIs(t, err, util.ErrCertificateNotFound)
	assert.Contains(t, f.db.actions(), AuditCertificateRevoked)
}

func TestRevokeExpiredFails(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, validityDays: 1, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)

	n, err := f.certs.ExpireDue(ctx, epoch.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.certs.Revoke(ctx, cert.ID, "late", 1)
	assert.ErrorIs(t, err, util.ErrInvalidTransition)
}

func TestExpireCertificate(t *testing.T) {
	until := epoch.Add(24 * time.Hour)

	active := &model.Certificate{Status: model.CertificateActive, ValidUntil: &until}
	assert.False(t, ExpireCertificate(active, epoch))
	assert.Equal(t, model.CertificateActive, active.Status)
	assert.True(t, ExpireCertificate(active, until))
	assert.Equal(t, model.CertificateExpired, active.Status)
	assert.False(t, ExpireCertificate(active, until.Add(time.Hour)), "expired stays expired")

	forever := &model.Certificate{Status: model.CertificateActive}
	assert.False(t, ExpireCertificate(forever, epoch.AddDate(100, 0, 0)))
}

func TestExpireDueOnlyTouchesDueCertificates(t *testing.T) {
	f := newFixture(t, defaultSettings())
	short := f.addSurvey(surveySpec{id: 1, code: "short", duration: 10, passing: 50, validityDays: 1, sections: []int{1}})
	long := f.addSurvey(surveySpec{id: 2, code: "long", duration: 10, passing: 50, validityDays: 30, sections: []int{1}})
	ctx := context.Background()

	c1, err := f.certs.Issue(ctx, f.passedResult("r1", 1), short)
	require.NoError(t, err)
	c2, err := f.certs.Issue(ctx, f.passedResult("r2", 2), long)
	require.NoError(t, err)

	n, err := f.certs.ExpireDue(ctx, epoch.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got1, _ := f.certs.Get(ctx, c1.ID)
	got2, _ := f.certs.Get(ctx, c2.ID)
	assert.Equal(t, model.CertificateExpired, got1.Status)
	assert.Equal(t, model.CertificateActive, got2.Status)
}

func TestRecordDownload(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)

	got, url, err := f.certs.RecordDownload(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DownloadCount)
	assert.Equal(t, "/uploads/certificates/SAFE-2026-000001.html", url)
	assert.Equal(t, model.CertificateActive, got.Status)

	doc := string(f.docs.puts["certificates/SAFE-2026-000001.html"])
	assert.True(t, strings.Contains(doc, "Candidate"))
	assert.True(t, strings.Contains(doc, "88.00"))
	assert.True(t, strings.Contains(doc, "SAFE-2026-000001"))

	got, _, err = f.certs.RecordDownload(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.DownloadCount)
	assert.Len(t, f.docs.puts, 1, "document is rendered once")

	stored, _ := f.certs.Get(ctx, cert.ID)
	assert.Equal(t, 2, stored.DownloadCount)
	assert.Equal(t, model.CertificateActive, stored.Status)
}

func TestRevokeDuringFirstDownloadSticks(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)

	f.docs.onPut = func(string) {
		_, err := f.certs.Revoke(ctx, cert.ID, "leaked answers", 2)
		require.NoError(t, err)
	}
	_, _, err = f.certs.RecordDownload(ctx, cert.ID)
	assert.ErrorIs(t, err, util.ErrInvalidTransition)

	stored, err := f.certs.Get(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateRevoked, stored.Status)
	assert.Equal(t, "leaked answers", stored.RevocationReason)
	require.NotNil(t, stored.RevokedAt)
	assert.Equal(t, "certificates/SAFE-2026-000001.html", stored.DocumentPath)
	assert.Equal(t, 0, stored.DownloadCount)
}

func TestRevokeDuringExpirySweepSticks(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, validityDays: 1, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)

	f.db.afterListExpiring = func(due []model.Certificate) {
		require.Len(t, due, 1)
		_, err := f.certs.Revoke(ctx, cert.ID, "fraud", 2)
		require.NoError(t, err)
	}
	n, err := f.certs.ExpireDue(ctx, epoch.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stored, err := f.certs.Get(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateRevoked, stored.Status)
	assert.Equal(t, "fraud", stored.RevocationReason)
	assert.NotContains(t, f.db.actions(), AuditCertificateExpired)
}

// staleCerts serves one stale read, as if another writer moved the row right
// after it was loaded.
type staleCerts struct {
	memCerts
	stale *model.Certificate
}

func (s *staleCerts) FindByID(ctx context.Context, id string) (*model.Certificate, error) {
	if s.stale != nil {
		c := *s.stale
		s.stale = nil
		return &c, nil
	}
	return s.memCerts.FindByID(ctx, id)
}

func TestRevokeLosingToExpiryFails(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, validityDays: 1, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)

	n, err := f.certs.ExpireDue(ctx, epoch.Add(48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	f.certs.Certs = &staleCerts{memCerts: memCerts{f.db}, stale: cert}
	_, err = f.certs.Revoke(ctx, cert.ID, "late", 2)
	assert.ErrorIs(t, err, util.ErrInvalidTransition)

	stored, err := f.certs.Get(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateExpired, stored.Status)
	assert.Nil(t, stored.RevokedAt)
	assert.Empty(t, stored.RevocationReason)
}

func TestConcurrentRevokeIsNoOp(t *testing.T) {
	f := newFixture(t, defaultSettings())
	survey := f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})
	ctx := context.Background()

	cert, err := f.certs.Issue(ctx, f.passedResult("r1", 1), survey)
	require.NoError(t, err)
	_, err = f.certs.Revoke(ctx, cert.ID, "first", 2)
	require.NoError(t, err)

	f.certs.Certs = &staleCerts{memCerts: memCerts{f.db}, stale: cert}
	got, err := f.certs.Revoke(ctx, cert.ID, "second", 3)
	require.NoError(t, err)
	assert.Equal(t, "first", got.RevocationReason)
	require.NotNil(t, got.RevokedBy)
	assert.Equal(t, uint(2), *got.RevokedBy)
}
