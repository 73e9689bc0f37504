package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/sagesync/internal/api/middleware"
	"github.com/d60-Lab/sagesync/pkg/response"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

// ListProducts 商品列表
// @Summary 商品列表
// @Tags 商城
// @Produce json
// @Param category query string false "分类名，all 表示全部"
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(12)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/shop/products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	page, perPage := pageQuery(c, 12)
	list, hasNext, err := h.shopService.Products(c.Request.Context(), c.Query("category"), page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.Page(c, list, page, perPage, hasNext)
}

// GetProduct 商品详情
// @Summary 商品详情
// @Tags 商城
// @Produce json
// @Param id path int true "商品ID"
// @Success 200 {object} response.Response{data=model.Product}
// @Failure 404 {object} response.Response
// @Router /api/shop/products/{id} [get]
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.shopService.Product(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, p)
}

// ListCategories 分类一次返回全部
// @Summary 商品分类
// @Tags 商城
// @Produce json
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/shop/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	list, err := h.shopService.Categories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Page(c, list, 1, len(list), false)
}

// GetCart 当前购物车
// @Summary 购物车
// @Tags 商城
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.Cart}
// @Router /api/shop/cart [get]
func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.shopService.Cart(c.Request.Context(), middleware.ViewerFrom(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, cart)
}

// AddToCart 加入购物车，已存在时累加数量
// @Summary 加入购物车
// @Tags 商城
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body addToCartRequest true "商品与数量"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/shop/cart [post]
func (h *Handler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.shopService.AddToCart(c.Request.Context(), middleware.ViewerFrom(c), req.ProductID, req.Quantity); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "added to cart")
}

// UpdateCartItem 修改数量，小于 1 时移除
// @Summary 修改购物车数量
// @Tags 商城
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品ID"
// @Param request body updateCartRequest true "数量"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/shop/cart/{id} [put]
func (h *Handler) UpdateCartItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.shopService.UpdateCartItem(c.Request.Context(), middleware.ViewerFrom(c).ID, id, req.Quantity); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "cart updated")
}

// RemoveFromCart 移除购物车行
// @Summary 移除购物车商品
// @Tags 商城
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/shop/cart/{id} [delete]
func (h *Handler) RemoveFromCart(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.shopService.RemoveFromCart(c.Request.Context(), middleware.ViewerFrom(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, "removed from cart")
}

// CreateOrder 用购物车下单并清空购物车
// @Summary 下单
// @Tags 商城
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Router /api/shop/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	order, err := h.shopService.PlaceOrder(c.Request.Context(), middleware.ViewerFrom(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, order)
}

// ListOrders 订单列表
// @Summary 我的订单
// @Tags 商城
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/shop/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	page, perPage := pageQuery(c, 10)
	list, hasNext, err := h.shopService.Orders(c.Request.Context(), middleware.ViewerFrom(c).ID, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.Page(c, list, page, perPage, hasNext)
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags 商城
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/shop/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.shopService.Order(c.Request.Context(), middleware.ViewerFrom(c).ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}
