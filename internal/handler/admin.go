package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"keyshop/internal/dto"
	"keyshop/internal/repository"
	"keyshop/internal/service"
)

type AdminHandler struct {
	approvalService service.ApprovalService
	orderService    service.OrderService
}

func NewAdminHandler(approvalService service.ApprovalService, orderService service.OrderService) *AdminHandler {
	return &AdminHandler{
		approvalService: approvalService,
		orderService:    orderService,
	}
}

// Decide is the web-admin approval channel.
func (h *AdminHandler) Decide(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := c.Get("admin_id").(string)

	var req dto.DecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	var resp dto.DecisionResponse
	switch req.Decision {
	case "approve":
		order, err := h.approvalService.Approve(ctx, req.OrderNo, service.ChannelAdmin, actor)
		if derr := decisionOutcome(&resp, err); derr != nil {
			return derr
		}
		if order != nil {
			resp.OrderNo = order.OrderNo
			resp.Status = order.Status
		}
	case "reject":
		order, err := h.approvalService.Reject(ctx, req.OrderNo, service.ChannelAdmin, actor, req.Reason)
		if derr := decisionOutcome(&resp, err); derr != nil {
			return derr
		}
		if order != nil {
			resp.OrderNo = order.OrderNo
			resp.Status = order.Status
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be approve or reject")
	}

	return c.JSON(http.StatusOK, &resp)
}

func (h *AdminHandler) Refund(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := c.Get("admin_id").(string)

	err := h.approvalService.Refund(ctx, c.Param("orderNo"), actor)
	if errors.Is(err, service.ErrAlreadyProcessed) {
		return echo.NewHTTPError(http.StatusConflict, "order is not refundable")
	}
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

// Restock adds keys to a product's pool.
func (h *AdminHandler) Restock(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RestockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	productID := c.Param("id")
	stock, err := h.orderService.Restock(ctx, productID, req.Keys)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, &dto.RestockResponse{
		ProductID: productID,
		Added:     len(req.Keys),
		Stock:     stock,
	})
}

// decisionOutcome maps gateway errors to accurate operator-facing outcomes:
// conflicts ("already processed", "insufficient stock") and provisioning
// failures are reported as such, never as generic errors.
func decisionOutcome(resp *dto.DecisionResponse, err error) error {
	switch {
	case err == nil:
		resp.Changed = true
	case errors.Is(err, service.ErrAlreadyProcessed):
		resp.Changed = false
		resp.Detail = "already processed"
	case errors.Is(err, repository.ErrInsufficientStock):
		resp.Changed = false
		resp.Detail = "insufficient stock"
	case errors.Is(err, service.ErrProvisionFailed):
		resp.Changed = false
		resp.Detail = "vpn provisioning failed, order left for retry"
	case errors.Is(err, repository.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	default:
		return err
	}
	return nil
}
