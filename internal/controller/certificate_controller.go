package controller

import (
	"tuteck_exam_backend/internal/service"
	"tuteck_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	Certificates *service.CertificateService
	Results      *service.ResultService
}

func NewCertificateController(certs *service.CertificateService, results *service.ResultService) *CertificateController {
	return &CertificateController{Certificates: certs, Results: results}
}

type RevokeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

func (c *CertificateController) Download(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	cert, err := c.Certificates.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if err := c.Results.AuthorizeOwner(ctx.Request.Context(), user.UserID, cert.UserID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	cert, url, err := c.Certificates.RecordDownload(ctx.Request.Context(), cert.ID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"certificate": cert,
		"url":         url,
	})
}

func (c *CertificateController) Revoke(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RevokeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cert, err := c.Certificates.Revoke(ctx.Request.Context(), ctx.Param("id"), req.Reason, user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// Reissue retries issuance for a passed result whose certificate is missing.
func (c *CertificateController) Reissue(ctx *gin.Context) {
	cert, err := c.Certificates.IssueForResult(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}
