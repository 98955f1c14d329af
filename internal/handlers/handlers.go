package handlers

import (
	"net/http"

	"fundwatch/internal/holdings"
	"fundwatch/internal/models"
	"fundwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	store *holdings.Store
	funds *service.FundService
	log   *logrus.Logger
}

func NewHandler(s *holdings.Store, f *service.FundService, log *logrus.Logger) *Handler {
	return &Handler{store: s, funds: f, log: log}
}

type DeleteRequest struct {
	Code *string `json:"code"`
}

func (h *Handler) GetProfit(c *gin.Context) {
	report := h.funds.Profit(c.Request.Context(), h.store.List())
	respondOK(c, "ok", report)
}

func (h *Handler) ListFunds(c *gin.Context) {
	funds := h.store.List()
	respondOK(c, "ok", gin.H{"funds": funds, "fund_count": len(funds)})
}

func (h *Handler) SearchFunds(c *gin.Context) {
	results, err := h.funds.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(results) == 0 {
		respondOK(c, "no matching fund", results)
		return
	}
	respondOK(c, "search succeeded", results)
}

func (h *Handler) AddFund(c *gin.Context) {
	var req holdings.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid add body: %v", err)
		h.respondError(c, models.ValidationErrorf("invalid request body"))
		return
	}

	funds, duplicate, err := h.store.Add(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if duplicate {
		respondOK(c, "fund already held, nothing added", funds)
		return
	}
	respondOK(c, "fund added", funds)
}

func (h *Handler) DeleteFund(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid delete body: %v", err)
		h.respondError(c, models.ValidationErrorf("invalid request body"))
		return
	}
	if req.Code == nil {
		h.respondError(c, models.ValidationErrorf("code is required"))
		return
	}

	funds, err := h.store.Delete(c.Request.Context(), *req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "fund deleted", funds)
}

func (h *Handler) ClearFunds(c *gin.Context) {
	funds, err := h.store.Clear(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "holdings cleared", gin.H{"fund_count": len(funds)})
}

func respondOK(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "msg": msg, "data": data})
}
