package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/pkg/response"
	"github.com/callsight/callqa_go_server/internal/service"
)

type CriteriaHandler struct {
	criteriaService *service.CriteriaService
	guard           *service.AccessGuard
}

func NewCriteriaHandler(criteriaService *service.CriteriaService, guard *service.AccessGuard) *CriteriaHandler {
	return &CriteriaHandler{
		criteriaService: criteriaService,
		guard:           guard,
	}
}

// Create 创建评分标准
// POST /api/v1/criteria
func (h *CriteriaHandler) Create(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	var req dto.SaveCriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.criteriaService.Create(principal, &req)
	if err != nil {
		h.writeCriteriaError(c, err)
		return
	}

	response.SuccessWithMessage(c, "创建成功", detail)
}

// Update 更新评分标准
// PUT /api/v1/criteria/:id
func (h *CriteriaHandler) Update(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的标准ID")
		return
	}

	var req dto.SaveCriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.criteriaService.Update(principal, id, &req)
	if err != nil {
		h.writeCriteriaError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", detail)
}

// Get 获取评分标准详情
// GET /api/v1/criteria/:id
func (h *CriteriaHandler) Get(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的标准ID")
		return
	}

	detail, err := h.criteriaService.Get(principal, id)
	if err != nil {
		h.writeCriteriaError(c, err)
		return
	}

	response.Success(c, detail)
}

// List 获取评分标准列表
// GET /api/v1/criteria
func (h *CriteriaHandler) List(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.criteriaService.List(principal, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Delete 删除评分标准
// DELETE /api/v1/criteria/:id
func (h *CriteriaHandler) Delete(c *gin.Context) {
	principal, ok := resolvePrincipal(c, h.guard)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的标准ID")
		return
	}

	if err := h.criteriaService.Delete(principal, id); err != nil {
		h.writeCriteriaError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

func (h *CriteriaHandler) writeCriteriaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCriteriaNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrInvalidWeights):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
