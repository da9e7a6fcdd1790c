package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/jersey-pos/internal/core/broadcast"
	"github.com/rl1809/jersey-pos/internal/core/coupon"
	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/service"
)

type HTTPHandler struct {
	sales     *service.SaleService
	inventory *service.InventoryService
	coupons   *coupon.Pool
	hub       *broadcast.Hub
	keepAlive time.Duration
}

type RouterOptions struct {
	Mode       string // gin mode
	CouponRate string // limiter rate for coupon writes, empty disables it
	Logger     *zap.Logger
	KeepAlive  time.Duration // SSE comment interval
}

type SaleHTTPRequest struct {
	RequestID      string       `json:"request_id"`
	SKU            string       `json:"sku"`
	Quantity       int          `json:"quantity"`
	DiscountAmount domain.Money `json:"discount_amount"`
	CustomerName   string       `json:"customer_name"`
	Notes          string       `json:"notes"`
}

type VariantHTTPRequest struct {
	JerseyID          uint   `json:"jersey_id"`
	Size              string `json:"size"`
	Sleeve            string `json:"sleeve"`
	SKU               string `json:"sku"`
	StockQuantity     int    `json:"stock_quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type StockReceiptHTTPRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type StockReceiptHTTPResponse struct {
	SKU         string `json:"sku"`
	NewQuantity int    `json:"new_quantity"`
	Version     int64  `json:"version"`
}

type CouponCodesHTTPRequest struct {
	Codes []string `json:"codes"`
}

func NewHTTPHandler(sales *service.SaleService, inventory *service.InventoryService, coupons *coupon.Pool, hub *broadcast.Hub) *HTTPHandler {
	return &HTTPHandler{sales: sales, inventory: inventory, coupons: coupons, hub: hub, keepAlive: 15 * time.Second}
}

func NewRouter(h *HTTPHandler, opts RouterOptions) (*gin.Engine, error) {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.KeepAlive > 0 {
		h.keepAlive = opts.KeepAlive
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(opts.Logger))
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.GET("/teams", h.ListTeams)
	api.POST("/teams", h.CreateTeam)

	api.GET("/jerseys", h.ListJerseys)
	api.POST("/jerseys", h.CreateJersey)
	api.GET("/jerseys/:id", h.GetJersey)
	api.DELETE("/jerseys/:id", h.DeleteJersey)
	api.GET("/jerseys/:id/variants", h.ListVariants)

	api.POST("/variants", h.CreateVariant)
	api.DELETE("/variants/:id", h.DeleteVariant)
	api.GET("/variants/sku/:sku", h.QuickView)
	api.GET("/quickview/:sku", h.QuickView)
	api.GET("/sku/preview", h.PreviewSKU)

	api.POST("/stock/receive", h.ReceiveStock)
	api.POST("/stock/receipts", h.ReceiveStock)
	api.GET("/alerts/low-stock", h.LowStock)

	api.GET("/sales", h.ListSales)
	api.POST("/sales", h.ProcessSale)
	api.GET("/sales/:id", h.GetSale)
	api.DELETE("/sales/:id", h.DeleteSale)

	api.GET("/customers", h.ListCustomers)
	api.POST("/customers", h.CreateCustomer)

	coupons := api.Group("/coupons")
	coupons.GET("", h.ListCoupons)
	coupons.GET("/export", h.ExportCoupons)
	coupons.POST("/preview", h.PreviewCoupons)
	writes := coupons.Group("")
	if opts.CouponRate != "" {
		limit, err := RateLimitMiddleware(opts.CouponRate)
		if err != nil {
			return nil, fmt.Errorf("coupon rate limit: %w", err)
		}
		writes.Use(limit)
	}
	writes.POST("/import", h.ImportCoupons)
	writes.POST("/claim", h.ClaimCoupon)
	writes.POST("/:id/copy", h.CopyCoupon)

	api.GET("/events", h.StreamEvents)
	return r, nil
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.hub.SubscriberCount()})
}

func (h *HTTPHandler) ProcessSale(c *gin.Context) {
	var req SaleHTTPRequest
	if !bind(c, &req) {
		return
	}
	sale, err := h.sales.ProcessSale(c.Request.Context(), service.SaleInput{
		RequestID:      req.RequestID,
		SKU:            req.SKU,
		Quantity:       req.Quantity,
		DiscountAmount: req.DiscountAmount,
		CustomerName:   req.CustomerName,
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *HTTPHandler) DeleteSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.sales.DeleteSale(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) GetSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sale, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *HTTPHandler) ListSales(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	sales, err := h.sales.ListSales(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(sales))
}

func (h *HTTPHandler) CreateVariant(c *gin.Context) {
	var req VariantHTTPRequest
	if !bind(c, &req) {
		return
	}
	v, err := h.inventory.CreateVariant(c.Request.Context(), service.VariantInput{
		JerseyID:          req.JerseyID,
		Size:              req.Size,
		Sleeve:            req.Sleeve,
		SKU:               req.SKU,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *HTTPHandler) DeleteVariant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.inventory.DeleteVariant(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) QuickView(c *gin.Context) {
	detail, err := h.inventory.QuickView(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *HTTPHandler) PreviewSKU(c *gin.Context) {
	jerseyID, err := strconv.ParseUint(c.Query("jersey_id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: jersey_id must be a positive integer", domain.ErrInvalidInput))
		return
	}
	code, err := h.inventory.PreviewSKU(c.Request.Context(), uint(jerseyID), c.Query("size"), c.Query("sleeve"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sku": code})
}

func (h *HTTPHandler) ReceiveStock(c *gin.Context) {
	var req StockReceiptHTTPRequest
	if !bind(c, &req) {
		return
	}
	level, err := h.inventory.ReceiveStock(c.Request.Context(), req.SKU, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, StockReceiptHTTPResponse{SKU: level.SKU, NewQuantity: level.Quantity, Version: level.Version})
}

func (h *HTTPHandler) LowStock(c *gin.Context) {
	alerts, err := h.inventory.LowStock(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(alerts))
}

func (h *HTTPHandler) ListTeams(c *gin.Context) {
	teams, err := h.inventory.ListTeams(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(teams))
}

func (h *HTTPHandler) CreateTeam(c *gin.Context) {
	var team domain.Team
	if !bind(c, &team) {
		return
	}
	team.ID = 0
	if err := h.inventory.CreateTeam(c.Request.Context(), &team); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *HTTPHandler) ListJerseys(c *gin.Context) {
	jerseys, err := h.inventory.ListJerseys(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(jerseys))
}

func (h *HTTPHandler) CreateJersey(c *gin.Context) {
	var jersey domain.Jersey
	if !bind(c, &jersey) {
		return
	}
	jersey.ID = 0
	if err := h.inventory.CreateJersey(c.Request.Context(), &jersey); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jersey)
}

func (h *HTTPHandler) GetJersey(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	jersey, err := h.inventory.GetJersey(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jersey)
}

func (h *HTTPHandler) DeleteJersey(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.inventory.DeleteJersey(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListVariants(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	variants, err := h.inventory.ListVariants(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(variants))
}

func (h *HTTPHandler) ListCustomers(c *gin.Context) {
	customers, err := h.inventory.ListCustomers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(customers))
}

func (h *HTTPHandler) CreateCustomer(c *gin.Context) {
	var customer domain.Customer
	if !bind(c, &customer) {
		return
	}
	customer.ID = 0
	if err := h.inventory.CreateCustomer(c.Request.Context(), &customer); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *HTTPHandler) ListCoupons(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(h.coupons.ListAvailable()))
}

func (h *HTTPHandler) PreviewCoupons(c *gin.Context) {
	var req CouponCodesHTTPRequest
	if !bind(c, &req) {
		return
	}
	accepted := h.coupons.Preview(req.Codes)
	c.JSON(http.StatusOK, gin.H{"accepted": nonNil(accepted), "submitted": len(req.Codes)})
}

func (h *HTTPHandler) ImportCoupons(c *gin.Context) {
	var req CouponCodesHTTPRequest
	if !bind(c, &req) {
		return
	}
	imported, err := h.coupons.ImportBatch(c.Request.Context(), req.Codes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": nonNil(imported), "skipped": len(req.Codes) - len(imported)})
}

func (h *HTTPHandler) ClaimCoupon(c *gin.Context) {
	claimed, err := h.coupons.ClaimOne(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimed)
}

func (h *HTTPHandler) CopyCoupon(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	claimed, err := h.coupons.Claim(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": claimed.ID, "code": claimed.Code})
}

func (h *HTTPHandler) ExportCoupons(c *gin.Context) {
	claimed, err := h.coupons.ListClaimed(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	filename := fmt.Sprintf("claimed-coupons-%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.JSON(http.StatusOK, nonNil(claimed))
}

func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.TrimSpace(err.Error())))
		return false
	}
	return true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, fmt.Errorf("%w: id must be a positive integer", domain.ErrInvalidInput))
		return 0, false
	}
	return uint(id), true
}

// nonNil keeps empty lists as [] on the wire.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
