package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	var resp Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/test", handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSuccess(t *testing.T) {
	w := serve(func(c *gin.Context) {
		Success(c, gin.H{"key": "value"})
	})

	assert.Equal(t, http.StatusOK, w.Code)

	resp := parseResponse(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", data["key"])
}

func TestSuccessWithMessage(t *testing.T) {
	w := serve(func(c *gin.Context) {
		SuccessWithMessage(c, "报告已发送", nil)
	})

	resp := parseResponse(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "报告已发送", resp.Message)
}

func TestSuccessPage(t *testing.T) {
	w := serve(func(c *gin.Context) {
		SuccessPage(c, 100, 2, 10, []string{"item1", "item2"})
	})

	resp := parseResponse(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(100), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(10), data["page_size"])

	items, ok := data["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(*gin.Context, string)
		message     string
		wantCode    int
		wantMessage string
	}{
		{"param error custom", ParamError, "参数格式不正确", CodeParamError, "参数格式不正确"},
		{"param error default", ParamError, "", CodeParamError, "参数错误"},
		{"auth error default", AuthError, "", CodeAuthFailed, "认证失败"},
		{"permission error default", PermissionError, "", CodePermissionDenied, "权限不足"},
		{"not found default", NotFoundError, "", CodeResourceNotFound, "资源不存在"},
		{"quota error default", QuotaError, "", CodeQuotaExceeded, "配额不足"},
		{"conflict default", ConflictError, "", CodeConflict, "该阶段正在处理中"},
		{"precondition default", PreconditionError, "", CodePrecondition, "前置条件未满足"},
		{"upstream default", UpstreamError, "", CodeUpstreamError, "上游服务调用失败"},
		{"server error custom", ServerError, "数据库连接失败", CodeServerError, "数据库连接失败"},
		{"server error default", ServerError, "", CodeServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(func(c *gin.Context) {
				tt.fn(c, tt.message)
			})

			resp := parseResponse(t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestError_UnknownCode(t *testing.T) {
	w := serve(func(c *gin.Context) {
		Error(c, 9999, "")
	})

	resp := parseResponse(t, w)
	assert.Equal(t, 9999, resp.Code)
	assert.Empty(t, resp.Message)
}
