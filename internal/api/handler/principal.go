package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/callsight/callqa_go_server/internal/api/middleware"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/pkg/response"
	"github.com/callsight/callqa_go_server/internal/service"
)

// resolvePrincipal 从认证上下文构造操作主体；失败时已写好响应
func resolvePrincipal(c *gin.Context, guard *service.AccessGuard) (*model.Principal, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return nil, false
	}

	principal, err := guard.ResolvePrincipal(userID)
	if err != nil {
		response.AuthError(c, "")
		return nil, false
	}
	return principal, true
}
