package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/sagesync/internal/api/middleware"
	"github.com/d60-Lab/sagesync/pkg/response"
)

// Follow 关注用户，影响 following 过滤结果
// @Summary 关注用户
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param id path int true "被关注用户ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/users/{id}/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.relService.Follow(c.Request.Context(), middleware.ViewerFrom(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "followed")
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param id path int true "被关注用户ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/users/{id}/follow [delete]
func (h *Handler) Unfollow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.relService.Unfollow(c.Request.Context(), middleware.ViewerFrom(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "unfollowed")
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Param id path int true "用户ID"
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/users/{id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, perPage := pageQuery(c, 10)
	list, hasNext, err := h.relService.ListFollowing(c.Request.Context(), id, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.Page(c, list, page, perPage, hasNext)
}
