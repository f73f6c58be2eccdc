package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"tuteck_exam_backend/internal/config"
	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"
	"tuteck_exam_backend/pkg/clock"
	"tuteck_exam_backend/pkg/keylock"
	"tuteck_exam_backend/pkg/logger"
	"tuteck_exam_backend/pkg/monitoring"
	"tuteck_exam_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AnswerInput is one submission or auto-save tick for a question.
type AnswerInput struct {
	QuestionID        uint   `json:"questionId" binding:"required"`
	SelectedOptionIDs []uint `json:"selectedOptionIds"`
	Flagged           bool   `json:"flagged"`
	AutoSave          bool   `json:"autoSave"`
}

type AnswerAck struct {
	SessionID       string              `json:"sessionId"`
	QuestionID      uint                `json:"questionId"`
	Status          model.SessionStatus `json:"status"`
	TimeRemaining   int                 `json:"timeRemaining"`
	FinalizePending bool                `json:"finalizePending"`
}

// SessionEngine drives test sessions through their lifecycle. Every mutation
// of one session runs under that session's lock; different sessions never
// share mutable state.
type SessionEngine struct {
	Surveys      SurveyStore
	Sessions     SessionStore
	Results      ResultStore
	Certificates *CertificateService
	Audit        *AuditService
	Clock        clock.Clock

	locks *keylock.KeyedMutex

	settingsMu sync.RWMutex
	settings   config.ExamConfig

	bankMu sync.Mutex
	banks  map[string]*model.QuestionBank
}

func NewSessionEngine(
	surveys SurveyStore,
	sessions SessionStore,
	results ResultStore,
	certificates *CertificateService,
	audit *AuditService,
	clk clock.Clock,
	settings config.ExamConfig,
) *SessionEngine {
	return &SessionEngine{
		Surveys:      surveys,
		Sessions:     sessions,
		Results:      results,
		Certificates: certificates,
		Audit:        audit,
		Clock:        clk,
		locks:        keylock.New(),
		settings:     settings,
		banks:        make(map[string]*model.QuestionBank),
	}
}

// UpdateSettings swaps the resolved exam settings, e.g. after a config reload.
func (e *SessionEngine) UpdateSettings(settings config.ExamConfig) {
	e.settingsMu.Lock()
	e.settings = settings
	e.settingsMu.Unlock()
}

func (e *SessionEngine) Settings() config.ExamConfig {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.settings
}

func pairKey(userID, surveyID uint) string {
	return "start:" + strconv.FormatUint(uint64(userID), 10) + ":" + strconv.FormatUint(uint64(surveyID), 10)
}

// StartSession opens a new attempt, or returns the live one if the pair already has it.
func (e *SessionEngine) StartSession(ctx context.Context, userID, surveyID uint) (*model.TestSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionEngine.StartSession",
		attribute.Int64("user.id", int64(userID)), attribute.Int64("survey.id", int64(surveyID)))
	defer span.End()

	unlock := e.locks.Lock(pairKey(userID, surveyID))
	defer unlock()

	survey, err := e.Surveys.FindSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	now := e.Clock.Now()
	if !survey.IsOpenAt(now) {
		return nil, util.ErrSurveyInactive
	}

	assigned, err := e.Surveys.IsAssigned(ctx, surveyID, userID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, util.ErrSurveyNotAssigned
	}

	active, err := e.Sessions.FindActive(ctx, userID, surveyID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}

	finished, err := e.Sessions.CountFinished(ctx, userID, surveyID)
	if err != nil {
		return nil, err
	}
	attempt := int(finished) + 1
	if survey.MaxAttempts > 0 && attempt > survey.MaxAttempts {
		return nil, fmt.Errorf("%w: attempt %d of %d", util.ErrAttemptLimitExceeded, attempt, survey.MaxAttempts)
	}

	session := &model.TestSession{
		UserID:        userID,
		SurveyID:      surveyID,
		Status:        model.SessionInProgress,
		StartTime:     now,
		LastTickAt:    now,
		TimeRemaining: survey.Duration * 60,
		AttemptNumber: attempt,
	}
	session.ID = model.GenerateUUID()
	if err := e.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	monitoring.SessionsStarted.Inc()
	e.Audit.Record(ctx, &userID, AuditSessionStarted, model.AuditEntitySession, session.ID, map[string]interface{}{
		"surveyId": surveyID,
		"attempt":  attempt,
	})
	logger.Log.Info("Session started",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", userID),
		zap.Uint("surveyId", surveyID),
		zap.Int("attempt", attempt))
	return session, nil
}

func (e *SessionEngine) GetSession(ctx context.Context, sessionID string) (*model.TestSession, error) {
	return e.Sessions.FindByID(ctx, sessionID)
}

// GetTimeRemaining is computed from stored timestamps only, so client clocks never matter.
func (e *SessionEngine) GetTimeRemaining(ctx context.Context, sessionID string) (int, error) {
	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return e.remainingAt(s, e.Clock.Now()), nil
}

// SubmitAnswer upserts the answer for one question and charges elapsed time
// against the budget. When the budget is already spent the answer is dropped
// and the session is timed out (or left pending manual finalize).
func (e *SessionEngine) SubmitAnswer(ctx context.Context, sessionID string, in AnswerInput) (*AnswerAck, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionEngine.SubmitAnswer", attribute.String("session.id", sessionID))
	defer span.End()

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != model.SessionInProgress || s.FinalizePending {
		return nil, fmt.Errorf("%w: session is %s", util.ErrSessionNotActive, s.Status)
	}

	settings := e.Settings()
	if in.AutoSave && !settings.EnableAutoSave {
		return nil, util.ErrAutoSaveDisabled
	}

	bank, err := e.bankFor(ctx, s)
	if err != nil {
		return nil, err
	}
	q, ok := bank.Question(in.QuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", util.ErrUnknownQuestion, in.QuestionID)
	}

	selected := model.OptionIDs(in.SelectedOptionIDs).Normalize()
	for _, id := range selected {
		if !q.HasOption(id) {
			return nil, fmt.Errorf("%w: option %d", util.ErrInvalidOption, id)
		}
	}
	if q.Type == model.QuestionSingleChoice && len(selected) > 1 {
		return nil, fmt.Errorf("%w: single choice question accepts one option", util.ErrInvalidOption)
	}

	if !settings.AllowQuestionNavigation && s.CurrentQuestionID != nil {
		pos, _ := bank.Position(q.ID)
		if cur, ok := bank.Position(*s.CurrentQuestionID); ok && pos < cur {
			return nil, util.ErrNavigationLocked
		}
	}

	now := e.Clock.Now()
	// an answer arriving within the budget's last second is kept
	lastSecond := s.TimeRemaining > 0 && int(now.Sub(s.LastTickAt)/time.Second) == s.TimeRemaining
	elapsed := e.tick(s, now)
	if s.TimeRemaining == 0 && !lastSecond {
		if _, err := e.exhaust(ctx, s, bank, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: time budget exhausted", util.ErrSessionNotActive)
	}

	existing, err := e.Sessions.FindAnswer(ctx, s.ID, q.ID)
	if err != nil {
		return nil, err
	}
	flagged := in.Flagged && settings.EnableQuestionFlagging

	ack := &AnswerAck{
		SessionID:     s.ID,
		QuestionID:    q.ID,
		Status:        s.Status,
		TimeRemaining: s.TimeRemaining,
	}

	// duplicate auto-save ticks change nothing
	duplicate := in.AutoSave && existing != nil && existing.IsAnswered == (len(selected) > 0) &&
		existing.SelectedOptionIDs.SameSet(selected) && existing.IsFlagged == flagged
	if duplicate && s.TimeRemaining > 0 {
		return ack, nil
	}

	if !duplicate {
		answer := &model.Answer{
			SessionID:         s.ID,
			QuestionID:        q.ID,
			SelectedOptionIDs: selected,
			IsAnswered:        len(selected) > 0,
			IsFlagged:         flagged,
			TimeSpent:         elapsed,
			AnsweredAt:        &now,
		}
		if existing != nil {
			answer.ID = existing.ID
			answer.TimeSpent += existing.TimeSpent
		}
		current := q.ID
		s.CurrentQuestionID = &current

		if err := e.Sessions.SaveAnswer(ctx, s, answer); err != nil {
			return nil, err
		}
	}

	if s.TimeRemaining == 0 {
		if _, err := e.exhaust(ctx, s, bank, now); err != nil {
			return nil, err
		}
		ack.Status = s.Status
		ack.FinalizePending = s.FinalizePending
	}
	return ack, nil
}

// Pause freezes the budget. reason is model.PauseReasonManual or model.PauseReasonNetwork.
func (e *SessionEngine) Pause(ctx context.Context, sessionID, reason string) (*model.TestSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionEngine.Pause", attribute.String("session.id", sessionID))
	defer span.End()

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == model.SessionPaused {
		return s, nil
	}
	if s.Status != model.SessionInProgress || s.FinalizePending {
		return nil, fmt.Errorf("%w: cannot pause a %s session", util.ErrInvalidTransition, s.Status)
	}

	bank, err := e.bankFor(ctx, s)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = model.PauseReasonManual
	}
	switch reason {
	case model.PauseReasonManual:
		if !bank.Survey.AllowPause {
			return nil, util.ErrPauseNotAllowed
		}
	case model.PauseReasonNetwork:
		if !e.Settings().NetworkPauseEnabled {
			return nil, util.ErrPauseNotAllowed
		}
	default:
		return nil, fmt.Errorf("%w: unknown reason %q", util.ErrPauseNotAllowed, reason)
	}

	now := e.Clock.Now()
	e.tick(s, now)
	if s.TimeRemaining == 0 {
		if _, err := e.exhaust(ctx, s, bank, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: time budget exhausted", util.ErrInvalidTransition)
	}

	s.Status = model.SessionPaused
	s.PauseTime = &now
	s.PauseReason = reason
	if err := e.Sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	// a paused session may never come back; the bank reloads on next use
	e.dropBank(s.ID)

	monitoring.SessionTransitions.WithLabelValues(string(model.SessionPaused)).Inc()
	e.Audit.Record(ctx, &s.UserID, AuditSessionPaused, model.AuditEntitySession, s.ID, map[string]interface{}{
		"reason":        reason,
		"timeRemaining": s.TimeRemaining,
	})
	return s, nil
}

// Resume returns a paused session to in_progress. Pause time is free up to
// the configured cap; anything beyond it is charged against the budget.
func (e *SessionEngine) Resume(ctx context.Context, sessionID string) (*model.TestSession, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionEngine.Resume", attribute.String("session.id", sessionID))
	defer span.End()

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == model.SessionInProgress {
		return s, nil
	}
	if s.Status != model.SessionPaused {
		return nil, fmt.Errorf("%w: cannot resume a %s session", util.ErrInvalidTransition, s.Status)
	}

	now := e.Clock.Now()
	e.closePause(s, now)
	s.ResumeTime = &now

	if s.TimeRemaining == 0 {
		bank, err := e.bankFor(ctx, s)
		if err != nil {
			return nil, err
		}
		if _, err := e.exhaust(ctx, s, bank, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: time budget exhausted while paused", util.ErrInvalidTransition)
	}

	if err := e.Sessions.Update(ctx, s); err != nil {
		return nil, err
	}

	monitoring.SessionTransitions.WithLabelValues(string(model.SessionInProgress)).Inc()
	e.Audit.Record(ctx, &s.UserID, AuditSessionResumed, model.AuditEntitySession, s.ID, map[string]interface{}{
		"totalPauseDuration": s.TotalPauseDuration,
	})
	return s, nil
}

// Complete is the explicit submit. Completing an already completed session
// returns the stored result without scoring again.
func (e *SessionEngine) Complete(ctx context.Context, sessionID string) (*model.TestResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionEngine.Complete", attribute.String("session.id", sessionID))
	defer span.End()

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case model.SessionCompleted:
		return e.storedResult(ctx, s)
	case model.SessionTimeout:
		return nil, fmt.Errorf("%w: session timed out", util.ErrSessionNotActive)
	}

	bank, err := e.bankFor(ctx, s)
	if err != nil {
		return nil, err
	}
	return e.finalize(ctx, s, bank, model.SessionCompleted, e.Clock.Now())
}

// ExpireTimeout moves a session whose budget is spent to timeout and scores
// it whatever auto_submit_on_timeout says. It is a no-op on a session that
// already timed out and refuses one that was completed first.
func (e *SessionEngine) ExpireTimeout(ctx context.Context, sessionID string) (*model.TestResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SessionEngine.ExpireTimeout", attribute.String("session.id", sessionID))
	defer span.End()

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch s.Status {
	case model.SessionTimeout:
		return e.storedResult(ctx, s)
	case model.SessionCompleted:
		return nil, fmt.Errorf("%w: session already completed", util.ErrSessionNotActive)
	}

	now := e.Clock.Now()
	if e.remainingAt(s, now) > 0 {
		return nil, fmt.Errorf("%w: deadline not reached", util.ErrInvalidTransition)
	}

	bank, err := e.bankFor(ctx, s)
	if err != nil {
		return nil, err
	}
	return e.finalize(ctx, s, bank, model.SessionTimeout, now)
}

// Deadline is when the budget of a live session runs out, or nil while it is
// paused without a pause cap.
func (e *SessionEngine) Deadline(s *model.TestSession) *time.Time {
	var d time.Time
	switch s.Status {
	case model.SessionInProgress:
		d = s.LastTickAt.Add(time.Duration(s.TimeRemaining) * time.Second)
	case model.SessionPaused:
		capSecs := e.Settings().MaxPauseMinutes * 60
		if capSecs == 0 || s.PauseTime == nil {
			return nil
		}
		allowed := capSecs - s.TotalPauseDuration
		if allowed < 0 {
			allowed = 0
		}
		d = s.PauseTime.Add(time.Duration(allowed+s.TimeRemaining) * time.Second)
	default:
		return nil
	}
	return &d
}

// SweepExpired checks every live session against its deadline. A failure on
// one session is logged and does not stop the others.
func (e *SessionEngine) SweepExpired(ctx context.Context) (int, error) {
	sessions, err := e.Sessions.ListByStatus(ctx, model.SessionInProgress, model.SessionPaused)
	if err != nil {
		return 0, err
	}

	now := e.Clock.Now()
	handled := 0
	for i := range sessions {
		if e.remainingAt(&sessions[i], now) > 0 {
			continue
		}
		changed, err := e.handleDeadline(ctx, sessions[i].ID)
		if err != nil {
			logger.Log.Error("Deadline sweep failed for session",
				zap.String("sessionId", sessions[i].ID), zap.Error(err))
			continue
		}
		if changed {
			handled++
		}
	}
	return handled, nil
}

// handleDeadline re-reads the session under its lock, so a concurrent
// Complete always wins over the sweep.
func (e *SessionEngine) handleDeadline(ctx context.Context, sessionID string) (bool, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, err := e.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !s.Status.IsActive() {
		return false, nil
	}
	now := e.Clock.Now()
	if e.remainingAt(s, now) > 0 {
		return false, nil
	}

	bank, err := e.bankFor(ctx, s)
	if err != nil {
		return false, err
	}

	if s.FinalizePending {
		grace := time.Duration(e.Settings().ManualFinalizeGraceSeconds) * time.Second
		if s.BudgetExhaustedAt != nil && now.Before(s.BudgetExhaustedAt.Add(grace)) {
			return false, nil
		}
		_, err := e.finalize(ctx, s, bank, model.SessionTimeout, now)
		return err == nil, err
	}

	if s.Status == model.SessionPaused {
		e.closePause(s, now)
	} else {
		e.tick(s, now)
	}
	_, err = e.exhaust(ctx, s, bank, now)
	return err == nil, err
}

// exhaust handles a session whose budget just reached zero: score it as a
// timeout when auto submit is on, otherwise leave it waiting for a manual
// Complete until the grace window lapses.
func (e *SessionEngine) exhaust(ctx context.Context, s *model.TestSession, bank *model.QuestionBank, now time.Time) (*model.TestResult, error) {
	if e.Settings().AutoSubmitOnTimeout {
		return e.finalize(ctx, s, bank, model.SessionTimeout, now)
	}

	s.TimeRemaining = 0
	s.FinalizePending = true
	if s.BudgetExhaustedAt == nil {
		s.BudgetExhaustedAt = &now
	}
	if err := e.Sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	e.Audit.Record(ctx, nil, AuditSessionFinalizable, model.AuditEntitySession, s.ID, nil)
	return nil, nil
}

// finalize moves s to a terminal status, scores it and persists everything
// in one transaction, then issues a certificate when passed.
func (e *SessionEngine) finalize(ctx context.Context, s *model.TestSession, bank *model.QuestionBank, status model.SessionStatus, now time.Time) (*model.TestResult, error) {
	start := time.Now()

	if s.Status == model.SessionPaused {
		e.closePause(s, now)
	} else if !s.FinalizePending {
		e.tick(s, now)
	}

	answers, err := e.Sessions.ListAnswers(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	s.Status = status
	s.EndTime = &now
	s.FinalizePending = false

	result := Score(s, answers, bank)
	result.ID = model.GenerateUUID()
	result.CompletedAt = now
	for _, qid := range result.ExcludedQuestionIDs {
		monitoring.IntegrityWarnings.WithLabelValues("missing_question").Inc()
		logger.Log.Warn("Answered question no longer exists, excluded from scoring",
			zap.String("sessionId", s.ID),
			zap.Uint("questionId", qid))
	}

	MarkCorrectness(answers, bank)
	s.Score = &result.Score
	s.IsPassed = &result.IsPassed

	if err := e.Sessions.Finalize(ctx, s, answers, result); err != nil {
		return nil, fmt.Errorf("persist result: %w", err)
	}
	monitoring.ScoringDuration.Observe(time.Since(start).Seconds())
	monitoring.SessionTransitions.WithLabelValues(string(status)).Inc()
	e.dropBank(s.ID)

	action := AuditSessionCompleted
	if status == model.SessionTimeout {
		action = AuditSessionTimedOut
	}
	e.Audit.Record(ctx, &s.UserID, action, model.AuditEntitySession, s.ID, map[string]interface{}{
		"resultId": result.ID,
		"score":    result.Score.StringFixed(2),
		"passed":   result.IsPassed,
	})
	logger.Log.Info("Session finished",
		zap.String("sessionId", s.ID),
		zap.String("status", string(status)),
		zap.String("score", result.Score.StringFixed(2)),
		zap.Bool("passed", result.IsPassed))

	if result.IsPassed {
		e.issueCertificate(ctx, result, bank.Survey)
	}
	return result, nil
}

// storedResult returns the persisted result of a terminal session, retrying
// certificate issuance if an earlier attempt failed after the result was saved.
func (e *SessionEngine) storedResult(ctx context.Context, s *model.TestSession) (*model.TestResult, error) {
	result, err := e.Results.FindBySessionID(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if result.IsPassed && result.CertificateID == nil && e.Certificates != nil {
		survey, err := e.Surveys.FindSurvey(ctx, s.SurveyID)
		if err != nil {
			return nil, err
		}
		e.issueCertificate(ctx, result, survey)
	}
	return result, nil
}

func (e *SessionEngine) issueCertificate(ctx context.Context, result *model.TestResult, survey *model.Survey) {
	if e.Certificates == nil {
		return
	}
	if _, err := e.Certificates.Issue(ctx, result, survey); err != nil {
		// the result is durable; a later Complete call retries issuance
		logger.Log.Error("Certificate issuance failed",
			zap.String("resultId", result.ID),
			zap.Error(err))
	}
}

// tick charges wall time since LastTickAt against the budget, in whole
// seconds, and returns the seconds charged.
func (e *SessionEngine) tick(s *model.TestSession, now time.Time) int {
	elapsed := int(now.Sub(s.LastTickAt) / time.Second)
	if elapsed <= 0 {
		return 0
	}
	if elapsed > s.TimeRemaining {
		elapsed = s.TimeRemaining
		s.TimeRemaining = 0
		s.LastTickAt = now
		return elapsed
	}
	s.TimeRemaining -= elapsed
	s.LastTickAt = s.LastTickAt.Add(time.Duration(elapsed) * time.Second)
	return elapsed
}

// closePause folds the current pause into the totals and returns s to in_progress.
func (e *SessionEngine) closePause(s *model.TestSession, now time.Time) {
	if s.PauseTime != nil {
		paused := int(now.Sub(*s.PauseTime) / time.Second)
		if paused < 0 {
			paused = 0
		}
		excess := e.pauseExcess(s, paused)
		s.TimeRemaining -= excess
		if s.TimeRemaining < 0 {
			s.TimeRemaining = 0
		}
		s.TotalPauseDuration += paused
	}
	s.PauseTime = nil
	s.PauseReason = ""
	s.LastTickAt = now
	s.Status = model.SessionInProgress
}

// pauseExcess is the part of a pause of the given length that exceeds the cap.
func (e *SessionEngine) pauseExcess(s *model.TestSession, paused int) int {
	capSecs := e.Settings().MaxPauseMinutes * 60
	if capSecs <= 0 {
		return 0
	}
	allowed := capSecs - s.TotalPauseDuration
	if allowed < 0 {
		allowed = 0
	}
	if paused <= allowed {
		return 0
	}
	return paused - allowed
}

// remainingAt computes the budget left at now without mutating s.
func (e *SessionEngine) remainingAt(s *model.TestSession, now time.Time) int {
	switch s.Status {
	case model.SessionInProgress:
		if s.FinalizePending {
			return 0
		}
		left := s.TimeRemaining - int(now.Sub(s.LastTickAt)/time.Second)
		if left < 0 {
			return 0
		}
		return left
	case model.SessionPaused:
		if s.PauseTime == nil {
			return s.TimeRemaining
		}
		paused := int(now.Sub(*s.PauseTime) / time.Second)
		left := s.TimeRemaining - e.pauseExcess(s, paused)
		if left < 0 {
			return 0
		}
		return left
	default:
		return s.TimeRemaining
	}
}

// bankFor returns the question bank for the session, loading it once per session.
func (e *SessionEngine) bankFor(ctx context.Context, s *model.TestSession) (*model.QuestionBank, error) {
	e.bankMu.Lock()
	bank, ok := e.banks[s.ID]
	e.bankMu.Unlock()
	if ok {
		return bank, nil
	}

	bank, err := e.Surveys.LoadQuestionBank(ctx, s.SurveyID)
	if err != nil {
		if errors.Is(err, util.ErrSurveyNotFound) {
			return nil, fmt.Errorf("session %s references missing survey: %w", s.ID, err)
		}
		return nil, err
	}

	e.bankMu.Lock()
	e.banks[s.ID] = bank
	e.bankMu.Unlock()
	return bank, nil
}

func (e *SessionEngine) dropBank(sessionID string) {
	e.bankMu.Lock()
	delete(e.banks, sessionID)
	e.bankMu.Unlock()
}
