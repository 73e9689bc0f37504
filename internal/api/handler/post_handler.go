package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/sagesync/internal/api/middleware"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/service"
	"github.com/d60-Lab/sagesync/pkg/response"
)

type createPostRequest struct {
	Content      string     `json:"content" binding:"required,max=5000"`
	ImageURL     string     `json:"image_url" binding:"omitempty,url"`
	RequiredTier model.Tier `json:"required_tier" binding:"omitempty,oneof=free seeker mystic sage oracle"`
}

type createCommentRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

// ListPosts 社区动态
// @Summary 动态列表
// @Tags 社区
// @Produce json
// @Param filter query string false "all|trending|following|premium" default(all)
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Failure 400 {object} response.Response
// @Router /api/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, perPage := pageQuery(c, 10)
	posts, hasNext, err := h.postService.List(c.Request.Context(), middleware.ViewerFrom(c), c.Query("filter"), page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.Page(c, posts, page, perPage, hasNext)
}

// GetPost 单条动态
// @Summary 动态详情
// @Tags 社区
// @Produce json
// @Param id path int true "动态ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.postService.Get(c.Request.Context(), middleware.ViewerFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, p)
}

// CreatePost 发布动态
// @Summary 发布动态
// @Tags 社区
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "动态内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.postService.Create(c.Request.Context(), middleware.ViewerFrom(c), service.CreatePostInput{
		Content:      req.Content,
		ImageURL:     req.ImageURL,
		RequiredTier: req.RequiredTier,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, p)
}

// LikePost 点赞（幂等）
// @Summary 点赞
// @Tags 社区
// @Produce json
// @Security BearerAuth
// @Param id path int true "动态ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.postService.Like(c.Request.Context(), middleware.ViewerFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, p)
}

// UnlikePost 取消点赞（幂等）
// @Summary 取消点赞
// @Tags 社区
// @Produce json
// @Security BearerAuth
// @Param id path int true "动态ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Router /api/posts/{id}/unlike [delete]
func (h *Handler) UnlikePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.postService.Unlike(c.Request.Context(), middleware.ViewerFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, p)
}

// ListComments 评论列表
// @Summary 评论列表
// @Tags 社区
// @Produce json
// @Param id path int true "动态ID"
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/posts/{id}/comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, perPage := pageQuery(c, 20)
	list, hasNext, err := h.postService.Comments(c.Request.Context(), id, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.Page(c, list, page, perPage, hasNext)
}

// CreateComment 发表评论
// @Summary 发表评论
// @Tags 社区
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "动态ID"
// @Param request body createCommentRequest true "评论内容"
// @Success 201 {object} response.Response{data=model.Comment}
// @Failure 403 {object} response.Response
// @Router /api/posts/{id}/comments [post]
func (h *Handler) CreateComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	comment, err := h.postService.AddComment(c.Request.Context(), middleware.ViewerFrom(c), id, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, comment)
}
