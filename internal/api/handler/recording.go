package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/pkg/response"
	"github.com/callsight/callqa_go_server/internal/service"
)

type RecordingHandler struct {
	recordingService *service.RecordingService
	guard            *service.AccessGuard
}

func NewRecordingHandler(recordingService *service.RecordingService, guard *service.AccessGuard) *RecordingHandler {
	return &RecordingHandler{
		recordingService: recordingService,
		guard:            guard,
	}
}

// Upload 上传录音
// POST /api/v1/recordings (multipart/form-data)
func (h *RecordingHandler) Upload(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	var req dto.CreateRecordingRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.ParamError(c, "缺少录音文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	resp, err := h.recordingService.Upload(principal, &req, fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileTooLarge):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrInvalidAudioType):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrTeamPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "上传成功", resp)
}

// List 获取录音列表
// GET /api/v1/recordings
func (h *RecordingHandler) List(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	search := c.Query("search")

	items, total, err := h.recordingService.List(principal, page, pageSize, search)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 获取录音详情
// GET /api/v1/recordings/:id
func (h *RecordingHandler) Get(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	detail, err := h.recordingService.Get(principal, id)
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

	response.Success(c, detail)
}

// Delete 删除录音
// DELETE /api/v1/recordings/:id
func (h *RecordingHandler) Delete(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	if err := h.recordingService.Delete(principal, id); err != nil {
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

	response.SuccessWithMessage(c, "删除成功", nil)
}
