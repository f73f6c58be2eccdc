package controller

import (
	"tuteck_exam_backend/internal/service"
	"tuteck_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	Results   *service.ResultService
	Hierarchy *service.HierarchyService
}

func NewResultController(results *service.ResultService, hierarchy *service.HierarchyService) *ResultController {
	return &ResultController{Results: results, Hierarchy: hierarchy}
}

func (c *ResultController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	surveyID := uint(0)
	if idStr := ctx.Query("surveyId"); idStr != "" {
		surveyID = util.MustParseUint(idStr)
		if surveyID == 0 {
			util.BadRequest(ctx, "invalid surveyId")
			return
		}
	}

	results, err := c.Results.ListResults(ctx.Request.Context(), user.UserID, surveyID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

func (c *ResultController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Results.GetResult(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// VisibleUsers lists the user ids the caller's reports cover.
func (c *ResultController) VisibleUsers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	ids, err := c.Hierarchy.VisibleUserIDs(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"userIds": ids})
}
