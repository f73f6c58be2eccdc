package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"
)

// memDB backs every in-memory store used by the service tests. Stores hand
// out copies so that callers cannot mutate stored rows behind the store's back.
type memDB struct {
	mu sync.Mutex

	surveys     map[uint]*model.Survey
	assignments map[[2]uint]bool
	sessions    map[string]model.TestSession
	answers     map[string]map[uint]model.Answer
	results     map[string]model.TestResult
	certs       map[string]model.Certificate
	users       map[uint]model.User
	nodes       []model.HierarchyNode
	audit       []model.AuditLog

	nextAnswerID uint
	failFinalize error
	certCreate   func(c *model.Certificate) error
	hierarchyHit int

	// runs outside the lock, after the due list is taken
	afterListExpiring func(due []model.Certificate)
}

func newMemDB() *memDB {
	return &memDB{
		surveys:     make(map[uint]*model.Survey),
		assignments: make(map[[2]uint]bool),
		sessions:    make(map[string]model.TestSession),
		answers:     make(map[string]map[uint]model.Answer),
		results:     make(map[string]model.TestResult),
		certs:       make(map[string]model.Certificate),
		users:       make(map[uint]model.User),
	}
}

func (db *memDB) actions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.audit))
	for _, a := range db.audit {
		out = append(out, a.Action)
	}
	return out
}

func (db *memDB) sessionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sessions)
}

func (db *memDB) resultCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.results)
}

// copySurvey deep-copies the survey tree so NewQuestionBank's sorting stays local.
func copySurvey(s *model.Survey) *model.Survey {
	out := *s
	out.Sections = make([]model.Section, len(s.Sections))
	for i, sec := range s.Sections {
		sec.Questions = append([]model.Question(nil), sec.Questions...)
		for j := range sec.Questions {
			sec.Questions[j].Options = append([]model.Option(nil), sec.Questions[j].Options...)
		}
		out.Sections[i] = sec
	}
	return &out
}

type memSurveys struct{ db *memDB }

func (m memSurveys) FindSurvey(ctx context.Context, id uint) (*model.Survey, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.surveys[id]
	if !ok {
		return nil, util.ErrSurveyNotFound
	}
	out := *s
	out.Sections = nil
	return &out, nil
}

func (m memSurveys) LoadQuestionBank(ctx context.Context, surveyID uint) (*model.QuestionBank, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.surveys[surveyID]
	if !ok {
		return nil, util.ErrSurveyNotFound
	}
	return model.NewQuestionBank(copySurvey(s)), nil
}

func (m memSurveys) IsAssigned(ctx context.Context, surveyID, userID uint) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.assignments[[2]uint{surveyID, userID}], nil
}

func (m memSurveys) Assign(ctx context.Context, a *model.SurveyAssignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.assignments[[2]uint{a.SurveyID, a.UserID}] = true
	return nil
}

type memSessions struct{ db *memDB }

func (m memSessions) FindByID(ctx context.Context, id string) (*model.TestSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.sessions[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return &s, nil
}

func (m memSessions) FindActive(ctx context.Context, userID, surveyID uint) (*model.TestSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, s := range m.db.sessions {
		if s.UserID == userID && s.SurveyID == surveyID && s.Status.IsActive() {
			return &s, nil
		}
	}
	return nil, nil
}

func (m memSessions) CountFinished(ctx context.Context, userID, surveyID uint) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, s := range m.db.sessions {
		if s.UserID == userID && s.SurveyID == surveyID && s.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (m memSessions) Create(ctx context.Context, s *model.TestSession) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.sessions[s.ID]; ok {
		return fmt.Errorf("duplicate session %s", s.ID)
	}
	m.db.sessions[s.ID] = *s
	return nil
}

func (m memSessions) Update(ctx context.Context, s *model.TestSession) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.sessions[s.ID] = *s
	return nil
}

func (m memSessions) FindAnswer(ctx context.Context, sessionID string, questionID uint) (*model.Answer, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.answers[sessionID][questionID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m memSessions) SaveAnswer(ctx context.Context, s *model.TestSession, a *model.Answer) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	byQuestion := m.db.answers[s.ID]
	if byQuestion == nil {
		byQuestion = make(map[uint]model.Answer)
		m.db.answers[s.ID] = byQuestion
	}
	if prev, ok := byQuestion[a.QuestionID]; ok {
		a.ID = prev.ID
	} else if a.ID == 0 {
		m.db.nextAnswerID++
		a.ID = m.db.nextAnswerID
	}
	stored := *a
	stored.SelectedOptionIDs = append(model.OptionIDs(nil), a.SelectedOptionIDs...)
	byQuestion[a.QuestionID] = stored
	m.db.sessions[s.ID] = *s
	return nil
}

func (m memSessions) ListAnswers(ctx context.Context, sessionID string) ([]model.Answer, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]model.Answer, 0, len(m.db.answers[sessionID]))
	for _, a := range m.db.answers[sessionID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m memSessions) ListByStatus(ctx context.Context, statuses ...model.SessionStatus) ([]model.TestSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.TestSession
	for _, s := range m.db.sessions {
		for _, st := range statuses {
			if s.Status == st {
				out = append(out, s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memSessions) Finalize(ctx context.Context, s *model.TestSession, answers []model.Answer, result *model.TestResult) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failFinalize != nil {
		return m.db.failFinalize
	}
	for _, r := range m.db.results {
		if r.SessionID == s.ID {
			return fmt.Errorf("duplicate result for session %s", s.ID)
		}
	}
	for i := range result.SectionScores {
		result.SectionScores[i].ResultID = result.ID
	}
	stored := *result
	stored.SectionScores = append([]model.SectionScore(nil), result.SectionScores...)
	m.db.results[result.ID] = stored
	for _, a := range answers {
		if prev, ok := m.db.answers[s.ID][a.QuestionID]; ok {
			prev.IsCorrect = a.IsCorrect
			m.db.answers[s.ID][a.QuestionID] = prev
		}
	}
	s.ResultID = &result.ID
	m.db.sessions[s.ID] = *s
	return nil
}

type memResults struct{ db *memDB }

func (m memResults) FindByID(ctx context.Context, id string) (*model.TestResult, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.results[id]
	if !ok {
		return nil, util.ErrResultNotFound
	}
	return &r, nil
}

func (m memResults) FindBySessionID(ctx context.Context, sessionID string) (*model.TestResult, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.results {
		if r.SessionID == sessionID {
			return &r, nil
		}
	}
	return nil, util.ErrResultNotFound
}

func (m memResults) ListForUsers(ctx context.Context, surveyID uint, userIDs []uint) ([]model.TestResult, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	allowed := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = true
	}
	var out []model.TestResult
	for _, r := range m.db.results {
		if allowed[r.UserID] && (surveyID == 0 || r.SurveyID == surveyID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m memResults) AttachCertificate(ctx context.Context, resultID, certificateID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.results[resultID]
	if !ok {
		return util.ErrResultNotFound
	}
	if r.CertificateID == nil {
		r.CertificateID = &certificateID
		m.db.results[resultID] = r
	}
	return nil
}

type memCerts struct{ db *memDB }

func (m memCerts) Create(ctx context.Context, c *model.Certificate) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.certCreate != nil {
		if err := m.db.certCreate(c); err != nil {
			return err
		}
	}
	for _, other := range m.db.certs {
		if other.CertificateNumber == c.CertificateNumber || other.ResultID == c.ResultID {
			return util.ErrDuplicateCertificateNumber
		}
	}
	m.db.certs[c.ID] = *c
	return nil
}

func (m memCerts) Revoke(ctx context.Context, id string, at time.Time, by uint, reason string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.certs[id]
	if !ok || c.Status != model.CertificateActive {
		return false, nil
	}
	c.Status = model.CertificateRevoked
	c.RevokedAt = &at
	c.RevokedBy = &by
	c.RevocationReason = reason
	m.db.certs[id] = c
	return true, nil
}

func (m memCerts) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.certs[id]
	if !ok || c.Status != model.CertificateActive || c.ValidUntil == nil || c.ValidUntil.After(now) {
		return false, nil
	}
	c.Status = model.CertificateExpired
	m.db.certs[id] = c
	return true, nil
}

func (m memCerts) SetDocumentPath(ctx context.Context, id, path string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.certs[id]
	if !ok {
		return util.ErrCertificateNotFound
	}
	c.DocumentPath = path
	m.db.certs[id] = c
	return nil
}

func (m memCerts) FindByID(ctx context.Context, id string) (*model.Certificate, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.certs[id]
	if !ok {
		return nil, util.ErrCertificateNotFound
	}
	return &c, nil
}

func (m memCerts) FindByResultID(ctx context.Context, resultID string) (*model.Certificate, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.certs {
		if c.ResultID == resultID {
			return &c, nil
		}
	}
	return nil, nil
}

func (m memCerts) LastSequence(ctx context.Context, prefix string) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	max := 0
	for _, c := range m.db.certs {
		if strings.HasPrefix(c.CertificateNumber, prefix) && c.Sequence > max {
			max = c.Sequence
		}
	}
	return max, nil
}

func (m memCerts) ListExpiring(ctx context.Context, now time.Time) ([]model.Certificate, error) {
	m.db.mu.Lock()
	var out []model.Certificate
	for _, c := range m.db.certs {
		if c.Status == model.CertificateActive && c.ValidUntil != nil && !c.ValidUntil.After(now) {
			out = append(out, c)
		}
	}
	after := m.db.afterListExpiring
	m.db.mu.Unlock()

	if after != nil {
		after(out)
	}
	return out, nil
}

func (m memCerts) IncrementDownloads(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.certs[id]
	if !ok {
		return util.ErrCertificateNotFound
	}
	c.DownloadCount++
	m.db.certs[id] = c
	return nil
}

type memUsers struct{ db *memDB }

func (m memUsers) FindByID(ctx context.Context, id uint) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	return &u, nil
}

type memHierarchy struct{ db *memDB }

func (m memHierarchy) ListHierarchy(ctx context.Context) ([]model.HierarchyNode, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.hierarchyHit++
	return append([]model.HierarchyNode(nil), m.db.nodes...), nil
}

type memAudit struct{ db *memDB }

func (m memAudit) Append(ctx context.Context, entry *model.AuditLog) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.audit = append(m.db.audit, *entry)
	return nil
}

func (m memAudit) ListForEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.AuditLog
	for _, a := range m.db.audit {
		if a.EntityType == entityType && a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

type failingAudit struct{}

func (failingAudit) Append(ctx context.Context, entry *model.AuditLog) error {
	return errors.New("audit store down")
}

type memDocs struct {
	mu   sync.Mutex
	puts map[string][]byte

	// runs outside the lock, after the document is stored
	onPut func(key string)
}

func newMemDocs() *memDocs {
	return &memDocs{puts: make(map[string][]byte)}
}

func (d *memDocs) PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	d.mu.Lock()
	d.puts[key] = append([]byte(nil), data...)
	onPut := d.onPut
	d.mu.Unlock()

	if onPut != nil {
		onPut(key)
	}
	return d.GetURL(key), nil
}

func (d *memDocs) GetURL(key string) string {
	return "/uploads/" + key
}
