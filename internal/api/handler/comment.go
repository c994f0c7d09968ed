package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/pkg/response"
	"github.com/callsight/callqa_go_server/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
	guard          *service.AccessGuard
}

func NewCommentHandler(commentService *service.CommentService, guard *service.AccessGuard) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		guard:          guard,
	}
}

// Create 创建评审备注
// POST /api/v1/recordings/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	recordingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.commentService.Create(principal, recordingID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordingNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrRecordingPermission):
			response.PermissionError(c, err.Error())
		case errors.Is(err, service.ErrParentNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrParentNotInRecording):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "备注成功", item)
}

// List 获取录音的评审备注列表
// GET /api/v1/recordings/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	recordingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.commentService.ListByRecordingID(principal, recordingID, page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordingNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrRecordingPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Delete 删除评审备注
// DELETE /api/v1/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	commentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的备注ID")
		return
	}

	if err := h.commentService.Delete(principal, commentID); err != nil {
		switch {
		case errors.Is(err, service.ErrCommentNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrCommentPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}
