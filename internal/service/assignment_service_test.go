package service

import (
	"context"
	"testing"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignGrantsAccess(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{2}})
	const newcomer uint = 42
	f.db.users[newcomer] = model.User{Name: "Newcomer", Email: "new@example.com"}

	svc := NewAssignmentService(memSurveys{f.db}, memSurveys{f.db}, memUsers{f.db}, f.engine.Audit, memAudit{f.db})
	ctx := context.Background()

	_, err := f.engine.StartSession(ctx, newcomer, 1)
	assert.ErrorIs(t, err, util.ErrSurveyNotAssigned)

	require.NoError(t, svc.Assign(ctx, 1, newcomer, 1))
	require.NoError(t, svc.Assign(ctx, 1, newcomer, 1))

	s, err := f.engine.StartSession(ctx, newcomer, 1)
	require.NoError(t, err)
	assert.Equal(t, newcomer, s.UserID)

	trail, err := svc.AuditTrail(ctx, model.AuditEntitySurvey, "1")
	require.NoError(t, err)
	require.Len(t, trail, 1, "second assignment is a no-op")
	assert.Equal(t, AuditSurveyAssigned, trail[0].Action)

	sessionTrail, err := svc.AuditTrail(ctx, model.AuditEntitySession, s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sessionTrail)
	assert.Equal(t, AuditSessionStarted, sessionTrail[0].Action)
}

func TestAssignRejectsUnknownRows(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.addSurvey(surveySpec{id: 1, code: "safe", duration: 10, passing: 50, sections: []int{1}})
	svc := NewAssignmentService(memSurveys{f.db}, memSurveys{f.db}, memUsers{f.db}, f.engine.Audit, memAudit{f.db})
	ctx := context.Background()

	assert.ErrorIs(t, svc.Assign(ctx, 99, candidateID, 1), util.ErrSurveyNotFound)
	assert.ErrorIs(t, svc.Assign(ctx, 1, 404, 1), util.ErrUserNotFound)
}
