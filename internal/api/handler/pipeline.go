package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/pkg/response"
	"github.com/callsight/callqa_go_server/internal/service"
)

type PipelineHandler struct {
	pipelineService *service.PipelineService
	guard           *service.AccessGuard
}

func NewPipelineHandler(pipelineService *service.PipelineService, guard *service.AccessGuard) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
		guard:           guard,
	}
}

// RequestTranscription 发起转写
// POST /api/v1/recordings/:id/transcription
func (h *PipelineHandler) RequestTranscription(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	detail, err := h.pipelineService.RequestTranscription(c.Request.Context(), principal, id)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	response.Success(c, detail)
}

// GetTranscription 查询转写
// GET /api/v1/recordings/:id/transcription
func (h *PipelineHandler) GetTranscription(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	detail, err := h.pipelineService.GetTranscription(principal, id)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	response.Success(c, detail)
}

// RequestAnalysis 发起分析
// POST /api/v1/recordings/:id/analysis
func (h *PipelineHandler) RequestAnalysis(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	var req dto.RequestAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		// 请求体可以为空（使用默认均分权重）
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.pipelineService.RequestAnalysis(c.Request.Context(), principal, id, req.CriteriaID)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	response.Success(c, detail)
}

// GetAnalysis 查询分析
// GET /api/v1/recordings/:id/analysis
func (h *PipelineHandler) GetAnalysis(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	detail, err := h.pipelineService.GetAnalysis(principal, id)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	response.Success(c, detail)
}

// GetScoreCard 查询评分卡
// GET /api/v1/recordings/:id/scorecard
func (h *PipelineHandler) GetScoreCard(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	detail, err := h.pipelineService.GetScoreCard(principal, id)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	response.Success(c, detail)
}

// ShareReport 分享质检报告到邮箱
// POST /api/v1/recordings/:id/share
func (h *PipelineHandler) ShareReport(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的录音ID")
		return
	}

	var req dto.ShareReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.pipelineService.ShareReport(c.Request.Context(), principal, id, req.Email); err != nil {
		h.writePipelineError(c, err)
		return
	}

	response.SuccessWithMessage(c, "报告已发送", nil)
}

func (h *PipelineHandler) writePipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRecordingNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrRecordingPermission):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrStageInFlight):
		response.ConflictError(c, err.Error())
	case errors.Is(err, service.ErrTranscriptionNotReady):
		response.PreconditionError(c, err.Error())
	case errors.Is(err, service.ErrAnalysisNotReady):
		response.PreconditionError(c, err.Error())
	case errors.Is(err, service.ErrCriteriaNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, err.Error())
	case errors.Is(err, service.ErrEnqueueFailed):
		response.UpstreamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
