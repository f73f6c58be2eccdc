package controller

import (
	"tuteck_exam_backend/internal/service"
	"tuteck_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	Assignments *service.AssignmentService
}

func NewAdminController(assignments *service.AssignmentService) *AdminController {
	return &AdminController{Assignments: assignments}
}

type AssignRequest struct {
	UserIDs []uint `json:"userIds" binding:"required,min=1"`
}

func (c *AdminController) AssignSurvey(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	surveyID := util.MustParseUint(ctx.Param("id"))
	if surveyID == 0 {
		util.BadRequest(ctx, "invalid survey id")
		return
	}

	var req AssignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	for _, userID := range req.UserIDs {
		if err := c.Assignments.Assign(ctx.Request.Context(), surveyID, userID, user.UserID); err != nil {
			util.HandleServiceError(ctx, err)
			return
		}
	}
	util.Success(ctx, gin.H{"surveyId": surveyID, "assigned": len(req.UserIDs)})
}

func (c *AdminController) AuditTrail(ctx *gin.Context) {
	entityType := ctx.Query("entityType")
	entityID := ctx.Query("entityId")
	if entityType == "" || entityID == "" {
		util.BadRequest(ctx, "entityType and entityId are required")
		return
	}

	logs, err := c.Assignments.AuditTrail(ctx.Request.Context(), entityType, entityID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, logs)
}
