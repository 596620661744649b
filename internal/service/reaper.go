package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"keyshop/internal/model"
	"keyshop/internal/quarantine"
	"keyshop/internal/repository"
)

const expiredReason = "payment window expired"

// Reaper periodically expires unpaid orders past their payment window and
// garbage-collects quarantine files no order references. Safe to run
// concurrently with human approvals: each expiry is a conditional
// pending-only transition, so an order approved mid-sweep is left alone.
type Reaper struct {
	orderRepo repository.OrderRepository
	auditRepo repository.AuditRepository
	store     *quarantine.Store
	notifier  NotificationService
	interval  time.Duration
	window    time.Duration
}

func NewReaper(
	orderRepo repository.OrderRepository,
	auditRepo repository.AuditRepository,
	store *quarantine.Store,
	notifier NotificationService,
	interval, window time.Duration,
) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		orderRepo: orderRepo,
		auditRepo: auditRepo,
		store:     store,
		notifier:  notifier,
		interval:  interval,
		window:    window,
	}
}

// Start launches the sweep loop and returns a stop function.
func (r *Reaper) Start() func(context.Context) error {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := r.Sweep(context.Background()); err != nil {
					log.Println("reaper sweep:", err)
				}
			}
		}
	}()
	return func(ctx context.Context) error {
		close(stop)
		return nil
	}
}

func (r *Reaper) Sweep(ctx context.Context) error {
	expired, err := r.orderRepo.ListExpiredPending(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list expired orders: %w", err)
	}

	for _, order := range expired {
		// re-check right before writing: an approval racing this sweep wins
		ok, err := r.orderRepo.TransitionStatus(ctx, nil, order.OrderNo,
			[]string{model.OrderStatusPending},
			model.OrderStatusRejected, expiredReason)
		if err != nil {
			log.Println("expire order", order.OrderNo+":", err)
			continue
		}
		if !ok {
			continue
		}

		if order.ScreenshotPath != "" {
			if err := r.store.Delete(order.ScreenshotPath); err != nil {
				log.Println("discard evidence of", order.OrderNo+":", err)
			}
		}

		if err := r.auditRepo.Record(ctx, &model.AuditLog{
			OrderNo: order.OrderNo,
			Action:  "expire",
			Channel: ChannelSystem,
			Reason:  expiredReason,
		}); err != nil {
			log.Println("audit expire:", err)
		}

		r.notifier.Dispatch(ctx, order.UserID, NotificationOrderRejected,
			"Order expired",
			fmt.Sprintf("Order %s was not paid within the payment window.", order.OrderNo),
			order.OrderNo,
		)
	}

	r.collectOrphans(ctx)
	return nil
}

// collectOrphans purges quarantine files older than the payment window that
// no order row references (uploads whose intake never finished). Evidence of
// rejected orders stays referenced, so it is never collected here.
func (r *Reaper) collectOrphans(ctx context.Context) {
	names, err := r.store.Orphans(r.window)
	if err != nil {
		log.Println("list quarantine orphans:", err)
		return
	}
	for _, name := range names {
		referenced, err := r.orderRepo.ExistsScreenshotPath(ctx, name)
		if err != nil {
			log.Println("check orphan reference:", err)
			continue
		}
		if referenced {
			continue
		}
		if err := r.store.Delete(name); err != nil {
			log.Println("delete orphan", name+":", err)
		}
	}
}
