package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/services"
	"github.com/nimasrn/gpu-savings-gateway/internal/usage"
	xhttp "github.com/nimasrn/gpu-savings-gateway/pkg/http"
)

type CustomerService interface {
	Signup(ctx context.Context, email string) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	Stats(ctx context.Context) (*model.RevenueStats, error)
}

type CustomerHandler struct {
	svc CustomerService
}

// RegisterCustomerRoutes mounts signup and stats openly and /me behind auth.
func RegisterCustomerRoutes(g *router.Group, h *CustomerHandler, auth xhttp.MiddlewareFunc) {
	g.POST("/signup", h.Signup)
	g.GET("/stats", h.Stats)
	g.GET("/me", chain(h.Me, auth))
}

func NewCustomerHandler(svc CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

type signupRequest struct {
	Email string `json:"email"`
}

type signupResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	APIKey  string `json:"api_key"`
}

type meResponse struct {
	*model.Customer
	Limits model.TierLimits `json:"limits"`
}

func (h *CustomerHandler) Signup(ctx *xhttp.RequestCtx) {
	var req signupRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, CodeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.svc.Signup(ctx, req.Email)
	switch {
	case errors.Is(err, services.ErrInvalidEmail):
		writeError(ctx, xhttp.StatusBadRequest, string(usage.CodeValidation), err.Error())
		return
	case errors.Is(err, services.ErrCustomerExists):
		writeError(ctx, xhttp.StatusConflict, CodeConflict, "email already registered")
		return
	case err != nil:
		writeUsageError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusCreated, signupResponse{
		Status:  "success",
		Message: "account created on the " + string(c.Tier) + " tier",
		APIKey:  c.APIKey,
	})
}

func (h *CustomerHandler) Me(ctx *xhttp.RequestCtx) {
	customer := CustomerFrom(ctx)
	if customer == nil {
		writeUsageError(ctx, usage.ErrUnauthenticated)
		return
	}
	// the cached record may lag; read the live totals
	c, err := h.svc.Get(ctx, customer.ID)
	if errors.Is(err, services.ErrCustomerNotFound) {
		writeError(ctx, xhttp.StatusNotFound, CodeNotFound, err.Error())
		return
	}
	if err != nil {
		writeUsageError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, meResponse{Customer: c, Limits: model.LimitsFor(c.Tier)})
}

func (h *CustomerHandler) Stats(ctx *xhttp.RequestCtx) {
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		writeUsageError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}
