// controllers/publishing.go
package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"publishing-api/middleware"
	"publishing-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PublishingController exposes the publishing workflow over HTTP.
type PublishingController struct {
	svc *services.PublishingService
	log *zap.Logger
}

func NewPublishingController(svc *services.PublishingService, log *zap.Logger) *PublishingController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PublishingController{svc: svc, log: log}
}

// workflowRequest treats an omitted requiresApproval as false.
type workflowRequest struct {
	RequiresApproval bool     `json:"requiresApproval"`
	Approvers        []string `json:"approvers"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// GET /api/v1/pages/:pageId/workflow
func (pc *PublishingController) GetWorkflow(c *gin.Context) {
	wf, err := pc.svc.GetWorkflow(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		pc.respondError(c, "fetch workflow", err)
		return
	}
	if wf == nil {
		c.JSON(http.StatusOK, gin.H{"workflow": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow": wf})
}

// PUT /api/v1/pages/:pageId/workflow
func (pc *PublishingController) UpsertWorkflow(c *gin.Context) {
	if middleware.ActorID(c) == "" {
		pc.respondError(c, "configure workflow", services.ErrUnauthorized)
		return
	}

	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requiresApproval must be a boolean"})
		return
	}

	wf, err := pc.svc.CreateOrUpdateWorkflow(c.Request.Context(), c.Param("pageId"), services.WorkflowInput{
		RequiresApproval: req.RequiresApproval,
		Approvers:        req.Approvers,
	})
	if err != nil {
		pc.respondError(c, "configure workflow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow": wf})
}

// POST /api/v1/pages/:pageId/workflow/request-approval
func (pc *PublishingController) RequestApproval(c *gin.Context) {
	wf, err := pc.svc.RequestApproval(c.Request.Context(), c.Param("pageId"), middleware.ActorID(c))
	if err != nil {
		pc.respondError(c, "request approval", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workflow": wf,
		"message":  "Approval requested successfully",
	})
}

// POST /api/v1/pages/:pageId/workflow/approve
func (pc *PublishingController) Approve(c *gin.Context) {
	res, err := pc.svc.ApprovePage(c.Request.Context(), c.Param("pageId"), middleware.ActorID(c))
	if err != nil {
		pc.respondError(c, "approve page", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workflow": res.Workflow,
		"page":     res.Page,
		"message":  "Page approved and published successfully",
	})
}

// POST /api/v1/pages/:pageId/workflow/reject
func (pc *PublishingController) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	wf, err := pc.svc.RejectPage(c.Request.Context(), c.Param("pageId"), middleware.ActorID(c), req.Reason)
	if err != nil {
		pc.respondError(c, "reject page", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workflow": wf,
		"message":  "Page rejected",
	})
}

// GET /api/v1/workflows/pending?limit=&offset=
func (pc *PublishingController) ListPending(c *gin.Context) {
	limit, offset := pageParams(c)
	rows, err := pc.svc.ListPendingApprovals(c.Request.Context(), limit, offset)
	if err != nil {
		pc.respondError(c, "list pending approvals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pendingApprovals": rows})
}

// GET /api/v1/pages/scheduled?limit=&offset=
func (pc *PublishingController) ListScheduled(c *gin.Context) {
	limit, offset := pageParams(c)
	pages, err := pc.svc.ListScheduledPages(c.Request.Context(), limit, offset)
	if err != nil {
		pc.respondError(c, "list scheduled pages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduledPages": pages})
}

// GET /api/v1/publishing/stats
func (pc *PublishingController) Stats(c *gin.Context) {
	stats, err := pc.svc.GetPublishingStats(c.Request.Context())
	if err != nil {
		pc.respondError(c, "fetch publishing stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// respondError maps domain errors to 4xx and hides everything else behind a 500.
func (pc *PublishingController) respondError(c *gin.Context, action string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, services.ErrWorkflowNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Workflow not found"})
	case errors.Is(err, services.ErrPageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Workflow is not pending approval"})
	default:
		_ = c.Error(err)
		pc.log.Error(action+" failed",
			zap.String("page_id", c.Param("pageId")),
			zap.String("request_id", c.GetString("requestID")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// pageParams reads limit/offset, falling back to defaults on bad input.
func pageParams(c *gin.Context) (int, int) {
	return parseNonNegative(c.Query("limit"), services.DefaultPageLimit),
		parseNonNegative(c.Query("offset"), 0)
}

func parseNonNegative(q string, def int) int {
	q = strings.TrimSpace(q)
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 0 {
		return def
	}
	return n
}
