package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"keyshop/internal/model"
	"keyshop/internal/repository"
	"keyshop/internal/stream"
)

type fakeBotClient struct {
	sent []string
}

func (f *fakeBotClient) SendApprovalRequest(_ context.Context, orderNo, _ string) (int64, error) {
	f.sent = append(f.sent, orderNo)
	return 42, nil
}

func (f *fakeBotClient) EditMessage(context.Context, int64, string) error { return nil }

func (f *fakeBotClient) AnswerCallback(context.Context, string, string) error { return nil }

func TestDispatchPersistsWithoutSubscribers(t *testing.T) {
	db := setupServiceDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, stream.NewHub(rdb), &fakeBotClient{})
	ctx := context.Background()

	// nobody is subscribed; the row is still the source of truth
	svc.Dispatch(ctx, "user-1", NotificationOrderCompleted, "Order completed", "Order KS-1 delivered.", "KS-1")

	rows, err := svc.ListByUser(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Type != NotificationOrderCompleted || rows[0].OrderNo != "KS-1" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	db := setupServiceDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, stream.NewHub(rdb), &fakeBotClient{})
	ctx := context.Background()

	svc.Dispatch(ctx, "user-1", NotificationOrderCreated, "Order received", "", "KS-1")
	rows, err := svc.ListByUser(ctx, "user-1", true)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list: rows=%d err=%v", len(rows), err)
	}
	id := rows[0].ID

	// another user cannot mark it read
	if err := svc.MarkRead(ctx, "user-2", id); err != nil {
		t.Fatalf("foreign mark read: %v", err)
	}
	rows, _ = svc.ListByUser(ctx, "user-1", true)
	if len(rows) != 1 {
		t.Fatal("notification marked read by another user")
	}

	if err := svc.MarkRead(ctx, "user-1", id); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	rows, _ = svc.ListByUser(ctx, "user-1", true)
	if len(rows) != 0 {
		t.Errorf("unread rows = %d after mark read", len(rows))
	}
}

func TestNotifyOperatorSendsPrompt(t *testing.T) {
	db := setupServiceDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bot := &fakeBotClient{}
	svc := NewNotificationService(repository.NewNotificationRepository(db), stream.NewHub(rdb), bot)

	svc.NotifyOperator(context.Background(), &model.Order{
		OrderNo:       "KS-1",
		UserID:        "user-1",
		Kind:          model.OrderKindProduct,
		TotalAmount:   1000,
		PaymentMethod: "transfer",
	})

	if len(bot.sent) != 1 || bot.sent[0] != "KS-1" {
		t.Errorf("operator prompts = %v", bot.sent)
	}
}
