package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"keyshop/internal/client"
	"keyshop/internal/config"
	"keyshop/internal/dto"
	"keyshop/internal/fraud"
	"keyshop/internal/model"
	"keyshop/internal/repository"
)

type fakeOCRClient struct {
	err   error
	calls int
}

func (f *fakeOCRClient) ExtractPaymentInfo(context.Context, string) (*client.PaymentInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &client.PaymentInfo{
		TransactionID: fmt.Sprintf("txn-%03d", f.calls),
		Amount:        "10.00",
		Confidence:    0.92,
	}, nil
}

type fakeCheckoutClient struct {
	err     error
	charged []string
}

func (f *fakeCheckoutClient) ChargeOneTime(_ context.Context, token, amount string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.charged = append(f.charged, token+"/"+amount)
	return "bt-txn-1", nil
}

type intakeFixture struct {
	db       *gorm.DB
	svc      OrderService
	cfg      *config.Config
	qdir     string
	ocr      *fakeOCRClient
	checkout *fakeCheckoutClient
	notifier *fakeNotifier
}

func setupIntake(t *testing.T) *intakeFixture {
	t.Helper()
	db := setupServiceDB(t)
	store, qdir, _ := setupQuarantine(t)
	ocr := &fakeOCRClient{}
	checkout := &fakeCheckoutClient{}
	notifier := &fakeNotifier{}

	cfg := &config.Config{
		Orders:     config.Orders{PaymentWindowMinutes: 30},
		Quarantine: config.Quarantine{MaxUploadSize: 1 << 20},
		Fraud:      config.Fraud{HighAmountThreshold: 500000},
		OCR:        config.OCR{Enabled: true, MinConfidence: 0.6},
		VPN: config.VPN{
			Servers:      []string{"sg1", "nl1"},
			MonthlyPrice: 1500,
			Protocol:     "vless",
		},
	}

	orders := repository.NewOrderRepository(db)
	products := repository.NewProductRepository(db)
	keys := repository.NewKeyRepository(db)
	coupons := repository.NewCouponRepository(db)
	engine := fraud.NewEngine(orders, cfg.Fraud.HighAmountThreshold, cfg.OCR.MinConfidence)

	svc := NewOrderService(db, cfg, orders, products, keys, coupons, store, engine, ocr, checkout, notifier)

	if err := db.Create(&model.Product{
		ID: "p1", Name: "Game Key", Price: 1000, Currency: "RUB", Category: "games",
	}).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	return &intakeFixture{
		db:       db,
		svc:      svc,
		cfg:      cfg,
		qdir:     qdir,
		ocr:      ocr,
		checkout: checkout,
		notifier: notifier,
	}
}

func newTestCoupon(code, discountType string, value int64, category string) *model.Coupon {
	return &model.Coupon{
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: value,
		Category:      category,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		UsageLimit:    100,
		PerUserLimit:  10,
	}
}

func productRequest() *dto.CreateOrderRequest {
	return &dto.CreateOrderRequest{
		Kind:          model.OrderKindProduct,
		ProductID:     "p1",
		Quantity:      2,
		PaymentMethod: PaymentMethodTransfer,
	}
}

func TestCreateProductOrder(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, "user-1", productRequest(), []byte("receipt-1"), ".png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.Status != model.OrderStatusVerifying {
		t.Errorf("status = %s, want verifying after successful extraction", order.Status)
	}
	if !order.OCRProcessed || order.OCRTransactionID == "" {
		t.Errorf("extraction result not recorded: %+v", order)
	}
	if order.TotalAmount != 2000 {
		t.Errorf("total = %d, want 2000", order.TotalAmount)
	}
	if order.PaymentDeadline.IsZero() {
		t.Error("payment deadline not set")
	}
	if order.ManualReview {
		t.Errorf("clean order flagged for review: %s", order.FraudFlags)
	}

	if _, err := os.Stat(filepath.Join(f.qdir, order.ScreenshotPath)); err != nil {
		t.Errorf("evidence not quarantined: %v", err)
	}

	if len(f.notifier.dispatched) != 1 || f.notifier.dispatched[0].typ != NotificationOrderCreated {
		t.Errorf("dispatched = %+v", f.notifier.dispatched)
	}
	if len(f.notifier.operator) != 1 {
		t.Errorf("operator notified %d times, want 1", len(f.notifier.operator))
	}
}

func TestCreateOrderExtractionUnavailable(t *testing.T) {
	f := setupIntake(t)
	f.ocr.err = errors.New("extractor down")
	ctx := context.Background()

	order, err := f.svc.Create(ctx, "user-1", productRequest(), []byte("receipt-1"), ".png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// intake still succeeds; the order just waits for a fully manual check
	if order.Status != model.OrderStatusPending {
		t.Errorf("status = %s, want pending when extraction is unavailable", order.Status)
	}
	if order.OCRProcessed {
		t.Error("ocr_processed set without a successful extraction")
	}
	if !order.ManualReview {
		t.Error("unverified order not flagged for manual review")
	}
}

func TestDuplicateScreenshotFlagged(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()
	receipt := []byte("the-same-receipt")

	first, err := f.svc.Create(ctx, "user-1", productRequest(), receipt, ".png")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.ManualReview {
		t.Errorf("first order flagged: %s", first.FraudFlags)
	}

	second, err := f.svc.Create(ctx, "user-2", productRequest(), receipt, ".png")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	flags := second.FraudFlagList()
	if len(flags) != 1 || flags[0] != model.FraudFlagDuplicateScreenshot {
		t.Errorf("flags = %v, want [duplicate-screenshot]", flags)
	}
	if !second.ManualReview {
		t.Error("flagged order not marked for manual review")
	}
}

func TestCreateAppliesCoupon(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	if err := f.db.Create(newTestCoupon("SAVE10", "percent", 10, "")).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	req := productRequest()
	req.CouponCode = "SAVE10"
	order, err := f.svc.Create(ctx, "user-1", req, []byte("receipt-1"), ".png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.DiscountAmount != 200 {
		t.Errorf("discount = %d, want 200", order.DiscountAmount)
	}
	if order.TotalAmount != 1800 {
		t.Errorf("total = %d, want 1800", order.TotalAmount)
	}

	var redemptions int64
	if err := f.db.Model(&model.CouponRedemption{}).Where("order_no = ?", order.OrderNo).Count(&redemptions).Error; err != nil {
		t.Fatalf("count redemptions: %v", err)
	}
	if redemptions != 1 {
		t.Errorf("redemptions = %d, want 1", redemptions)
	}
}

func TestCreateRejectsCategoryMismatchedCoupon(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	if err := f.db.Create(newTestCoupon("VPNONLY", "percent", 10, "vpn")).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	req := productRequest()
	req.CouponCode = "VPNONLY"
	_, err := f.svc.Create(ctx, "user-1", req, []byte("receipt-1"), ".png")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateExhaustedCouponLeavesNoOrder(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	coupon := newTestCoupon("ONCE", "fixed", 100, "")
	coupon.UsageLimit = 1
	coupon.UsageCount = 1
	if err := f.db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	req := productRequest()
	req.CouponCode = "ONCE"
	_, err := f.svc.Create(ctx, "user-1", req, []byte("receipt-1"), ".png")
	if !errors.Is(err, repository.ErrCouponExhausted) {
		t.Fatalf("err = %v, want ErrCouponExhausted", err)
	}

	// the transaction rolled back whole: no order row, no stray evidence
	var count int64
	if err := f.db.Model(&model.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Errorf("order rows = %d, want 0", count)
	}
	entries, err := os.ReadDir(f.qdir)
	if err != nil {
		t.Fatalf("read quarantine: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d files left in quarantine after rolled-back intake", len(entries))
	}
}

func TestCreateVPNOrderPricing(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, "user-1", &dto.CreateOrderRequest{
		Kind:          model.OrderKindVPN,
		ServerID:      "sg1",
		Devices:       2,
		Months:        3,
		PaymentMethod: PaymentMethodTransfer,
	}, []byte("receipt-1"), ".png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.TotalAmount != 1500*2*3 {
		t.Errorf("total = %d, want %d", order.TotalAmount, 1500*2*3)
	}
	if order.VPNDurationDays != 90 {
		t.Errorf("duration = %d days, want 90", order.VPNDurationDays)
	}
	if order.VPNProvisionStatus != model.ProvisionStatusPending {
		t.Errorf("provision status = %s", order.VPNProvisionStatus)
	}
}

func TestCreateCardOrderChargesProvider(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	req := productRequest()
	req.PaymentMethod = PaymentMethodCard
	req.PaymentToken = "tok-123"
	order, err := f.svc.Create(ctx, "user-1", req, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(f.checkout.charged) != 1 {
		t.Fatalf("charged %d times, want 1", len(f.checkout.charged))
	}
	if f.checkout.charged[0] != "tok-123/20.00" {
		t.Errorf("charge = %s", f.checkout.charged[0])
	}
	if order.ScreenshotPath != "" {
		t.Error("card order carries evidence")
	}
	if f.ocr.calls != 0 {
		t.Error("extractor called for a card order")
	}
}

func TestCreateCardOrderRequiresToken(t *testing.T) {
	f := setupIntake(t)

	req := productRequest()
	req.PaymentMethod = PaymentMethodCard
	_, err := f.svc.Create(context.Background(), "user-1", req, nil, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		req        *dto.CreateOrderRequest
		screenshot []byte
		ext        string
	}{
		{
			name: "unknown kind",
			req:  &dto.CreateOrderRequest{Kind: "subscription", PaymentMethod: PaymentMethodTransfer},
		},
		{
			name: "zero quantity",
			req:  &dto.CreateOrderRequest{Kind: model.OrderKindProduct, ProductID: "p1", PaymentMethod: PaymentMethodTransfer},
		},
		{
			name: "quantity over cap",
			req:  &dto.CreateOrderRequest{Kind: model.OrderKindProduct, ProductID: "p1", Quantity: 11, PaymentMethod: PaymentMethodTransfer},
		},
		{
			name: "unknown product",
			req:  &dto.CreateOrderRequest{Kind: model.OrderKindProduct, ProductID: "nope", Quantity: 1, PaymentMethod: PaymentMethodTransfer},
		},
		{
			name: "unknown server",
			req:  &dto.CreateOrderRequest{Kind: model.OrderKindVPN, ServerID: "mars1", Devices: 1, Months: 1, PaymentMethod: PaymentMethodTransfer},
		},
		{
			name: "unknown payment method",
			req:  &dto.CreateOrderRequest{Kind: model.OrderKindProduct, ProductID: "p1", Quantity: 1, PaymentMethod: "cash"},
		},
		{
			name:       "missing screenshot",
			req:        productRequest(),
			screenshot: nil,
		},
		{
			name:       "unsupported evidence type",
			req:        productRequest(),
			screenshot: []byte("receipt"),
			ext:        ".pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screenshot := tt.screenshot
			ext := tt.ext
			if screenshot == nil && tt.name != "missing screenshot" {
				screenshot = []byte("receipt")
			}
			if ext == "" {
				ext = ".png"
			}
			_, err := f.svc.Create(ctx, "user-1", tt.req, screenshot, ext)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRestock(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	stock, err := f.svc.Restock(ctx, "p1", []dto.RestockKey{
		{Serial: "key-1"},
		{Serial: "key-2", Login: "acc@example.com"},
	})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if stock != 2 {
		t.Errorf("stock = %d, want 2", stock)
	}

	if _, err := f.svc.Restock(ctx, "nope", []dto.RestockKey{{Serial: "k"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown product: err = %v, want ErrValidation", err)
	}
	if _, err := f.svc.Restock(ctx, "p1", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("empty batch: err = %v, want ErrValidation", err)
	}
}

func TestGetHidesForeignOrders(t *testing.T) {
	f := setupIntake(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, "user-1", productRequest(), []byte("receipt-1"), ".png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Get(ctx, "user-2", order.OrderNo); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound for another user", err)
	}
	if _, err := f.svc.Get(ctx, "user-1", order.OrderNo); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}
