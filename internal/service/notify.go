package service

import (
	"context"
	"fmt"
	"log"

	"keyshop/internal/client"
	"keyshop/internal/dto"
	"keyshop/internal/model"
	"keyshop/internal/repository"
	"keyshop/internal/stream"
)

const (
	NotificationOrderCreated   = "order_created"
	NotificationOrderCompleted = "order_completed"
	NotificationOrderRejected  = "order_rejected"
)

type NotificationService interface {
	// Dispatch persists the notification and pushes it to any live
	// subscriber. Both sub-effects are best-effort and independent; a failed
	// push never rolls back anything.
	Dispatch(ctx context.Context, userID, typ, title, message, orderNo string)

	// NotifyOperator posts the approve/reject prompt for a new order into the
	// operator chat. Best-effort.
	NotifyOperator(ctx context.Context, order *model.Order)

	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error)
	MarkRead(ctx context.Context, userID string, id uint) error
}

type notificationServiceImpl struct {
	notificationRepo repository.NotificationRepository
	hub              *stream.Hub
	botClient        client.BotClient
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	hub *stream.Hub,
	botClient client.BotClient,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		hub:              hub,
		botClient:        botClient,
	}
}

func (s *notificationServiceImpl) Dispatch(ctx context.Context, userID, typ, title, message, orderNo string) {
	n := &model.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		OrderNo: orderNo,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		log.Println("persist notification:", err)
	}

	if err := s.hub.Publish(ctx, userID, &dto.StreamEvent{
		Type:           typ,
		Title:          title,
		Message:        message,
		NotificationID: n.ID,
		OrderNo:        orderNo,
	}); err != nil {
		log.Println("push notification:", err)
	}
}

func (s *notificationServiceImpl) NotifyOperator(ctx context.Context, order *model.Order) {
	summary := fmt.Sprintf(
		"New %s order %s\nUser: %s\nAmount: %d\nMethod: %s",
		order.Kind, order.OrderNo, order.UserID, order.TotalAmount, order.PaymentMethod,
	)
	if order.ManualReview {
		summary += "\nManual review: " + order.FraudFlags
	}

	if _, err := s.botClient.SendApprovalRequest(ctx, order.OrderNo, summary); err != nil {
		log.Println("operator notification:", err)
	}
}

func (s *notificationServiceImpl) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly)
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID string, id uint) error {
	return s.notificationRepo.MarkRead(ctx, userID, id)
}
