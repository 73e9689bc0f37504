package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/sagesync/internal/service"
	"github.com/d60-Lab/sagesync/pkg/response"
)

// Handler 聚合开发服务端的全部业务服务
type Handler struct {
	authService service.AuthService
	postService service.PostService
	shopService service.ShopService
	relService  service.RelationshipService
}

func NewHandler(authService service.AuthService, postService service.PostService, shopService service.ShopService, relService service.RelationshipService) *Handler {
	return &Handler{
		authService: authService,
		postService: postService,
		shopService: shopService,
		relService:  relService,
	}
}

// fail 把业务错误映射为 HTTP 状态码
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInsufficientTier):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrUsernameTaken):
		response.Fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownFilter),
		errors.Is(err, service.ErrFollowSelf),
		errors.Is(err, service.ErrEmptyCart):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func pageQuery(c *gin.Context, def int) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(def)))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = def
	}
	return page, perPage
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/health [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
