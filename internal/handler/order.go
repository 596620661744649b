package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"keyshop/internal/dto"
	"keyshop/internal/repository"
	"keyshop/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func userIDFromContext(c echo.Context) string {
	uid, _ := c.Get("user_id").(string)
	return uid
}

// Create accepts a multipart form: an `order` part describing the purchase
// and an optional `screenshot` part with the payment evidence.
func (h *OrderHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	userID := userIDFromContext(c)

	req := dto.CreateOrderRequest{
		Kind:          c.FormValue("kind"),
		ProductID:     c.FormValue("product_id"),
		ServerID:      c.FormValue("server_id"),
		PaymentMethod: c.FormValue("payment_method"),
		CouponCode:    c.FormValue("coupon_code"),
		PaymentToken:  c.FormValue("payment_token"),
	}
	if v := c.FormValue("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		req.Quantity = n
	}
	if v := c.FormValue("devices"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid devices")
		}
		req.Devices = n
	}
	if v := c.FormValue("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid months")
		}
		req.Months = n
	}

	var screenshot []byte
	var ext string
	if file, err := c.FormFile("screenshot"); err == nil {
		src, err := file.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable screenshot")
		}
		defer src.Close()
		screenshot, err = io.ReadAll(src)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable screenshot")
		}
		ext = filepath.Ext(file.Filename)
	}

	order, err := h.orderService.Create(ctx, userID, &req, screenshot, ext)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusCreated, &dto.CreateOrderResponse{
		OrderNo:     order.OrderNo,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Discount:    order.DiscountAmount,
		PayBefore:   order.PaymentDeadline.Format("2006-01-02 15:04:05"),
	})
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.orderService.Get(ctx, userIDFromContext(c), c.Param("orderNo"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.orderService.List(ctx, userIDFromContext(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Products(c echo.Context) error {
	products, err := h.orderService.ListProducts(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, products)
}

func (h *OrderHandler) Anonymize(c echo.Context) error {
	if err := h.orderService.AnonymizeAccount(c.Request().Context(), userIDFromContext(c)); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
