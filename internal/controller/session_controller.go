package controller

import (
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/service"
	"tuteck_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	Engine  *service.SessionEngine
	Results *service.ResultService
}

func NewSessionController(engine *service.SessionEngine, results *service.ResultService) *SessionController {
	return &SessionController{Engine: engine, Results: results}
}

type StartSessionRequest struct {
	SurveyID uint `json:"surveyId" binding:"required"`
}

type SubmitAnswerRequest struct {
	QuestionID        uint   `json:"questionId" binding:"required"`
	SelectedOptionIDs []uint `json:"selectedOptionIds"`
	Flagged           bool   `json:"flagged"`
	AutoSave          bool   `json:"autoSave"`
}

type PauseRequest struct {
	Reason string `json:"reason"`
}

type sessionView struct {
	*model.TestSession
	Deadline *time.Time `json:"deadline,omitempty"`
}

func (c *SessionController) view(s *model.TestSession) sessionView {
	return sessionView{TestSession: s, Deadline: c.Engine.Deadline(s)}
}

// ownedSession loads the session and checks the caller is its candidate.
func (c *SessionController) ownedSession(ctx *gin.Context) (*model.TestSession, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, false
	}

	s, err := c.Engine.GetSession(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return nil, false
	}
	if s.UserID != user.UserID {
		util.Forbidden(ctx)
		return nil, false
	}
	return s, true
}

func (c *SessionController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	s, err := c.Engine.StartSession(ctx.Request.Context(), user.UserID, req.SurveyID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, c.view(s))
}

// Get is open to the candidate and to anyone above them in the hierarchy.
func (c *SessionController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	s, err := c.Engine.GetSession(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if err := c.Results.AuthorizeOwner(ctx.Request.Context(), user.UserID, s.UserID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, c.view(s))
}

func (c *SessionController) SubmitAnswer(ctx *gin.Context) {
	s, ok := c.ownedSession(ctx)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ack, err := c.Engine.SubmitAnswer(ctx.Request.Context(), s.ID, service.AnswerInput{
		QuestionID:        req.QuestionID,
		SelectedOptionIDs: req.SelectedOptionIDs,
		Flagged:           req.Flagged,
		AutoSave:          req.AutoSave,
	})
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, ack)
}

func (c *SessionController) Pause(ctx *gin.Context) {
	s, ok := c.ownedSession(ctx)
	if !ok {
		return
	}

	var req PauseRequest
	// body is optional
	_ = ctx.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = model.PauseReasonManual
	}
	if req.Reason != model.PauseReasonManual && req.Reason != model.PauseReasonNetwork {
		util.BadRequest(ctx, "reason must be manual or network")
		return
	}

	paused, err := c.Engine.Pause(ctx.Request.Context(), s.ID, req.Reason)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, c.view(paused))
}

func (c *SessionController) Resume(ctx *gin.Context) {
	s, ok := c.ownedSession(ctx)
	if !ok {
		return
	}

	resumed, err := c.Engine.Resume(ctx.Request.Context(), s.ID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, c.view(resumed))
}

func (c *SessionController) Complete(ctx *gin.Context) {
	s, ok := c.ownedSession(ctx)
	if !ok {
		return
	}

	result, err := c.Engine.Complete(ctx.Request.Context(), s.ID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func (c *SessionController) TimeRemaining(ctx *gin.Context) {
	s, ok := c.ownedSession(ctx)
	if !ok {
		return
	}

	remaining, err := c.Engine.GetTimeRemaining(ctx.Request.Context(), s.ID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"sessionId":     s.ID,
		"timeRemaining": remaining,
		"status":        s.Status,
	})
}
