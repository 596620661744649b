package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"keyshop/internal/client"
	"keyshop/internal/dto"
	"keyshop/internal/service"
)

type BotHandler struct {
	approvalService service.ApprovalService
	botClient       client.BotClient
}

func NewBotHandler(approvalService service.ApprovalService, botClient client.BotClient) *BotHandler {
	return &BotHandler{
		approvalService: approvalService,
		botClient:       botClient,
	}
}

// Webhook is the chat-bot approval channel. The shared-secret header is
// checked by middleware before this runs. Message edit and callback answer
// are best-effort; the state transition is the guarantee, not the chat UI.
func (h *BotHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	var cb dto.BotCallback
	if err := c.Bind(&cb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback payload")
	}
	if cb.OrderNo == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order_no")
	}

	var resp dto.DecisionResponse
	resp.OrderNo = cb.OrderNo

	switch cb.Action {
	case "approve":
		order, err := h.approvalService.Approve(ctx, cb.OrderNo, service.ChannelBot, cb.Operator)
		if derr := decisionOutcome(&resp, err); derr != nil {
			return derr
		}
		if order != nil {
			resp.Status = order.Status
		}
	case "reject":
		order, err := h.approvalService.Reject(ctx, cb.OrderNo, service.ChannelBot, cb.Operator, "")
		if derr := decisionOutcome(&resp, err); derr != nil {
			return derr
		}
		if order != nil {
			resp.Status = order.Status
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "action must be approve or reject")
	}

	h.annotateChat(ctx, &cb, &resp)

	return c.JSON(http.StatusOK, &resp)
}

func (h *BotHandler) annotateChat(ctx context.Context, cb *dto.BotCallback, resp *dto.DecisionResponse) {
	outcome := resp.Status
	if !resp.Changed {
		outcome = resp.Detail
	}

	if cb.CallbackID != "" {
		if err := h.botClient.AnswerCallback(ctx, cb.CallbackID, outcome); err != nil {
			log.Println("answer callback:", err)
		}
	}
	if cb.MessageID != 0 {
		text := fmt.Sprintf("Order %s: %s", cb.OrderNo, outcome)
		if err := h.botClient.EditMessage(ctx, cb.MessageID, text); err != nil {
			log.Println("edit bot message:", err)
		}
	}
}
