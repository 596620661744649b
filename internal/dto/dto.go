package dto

type CreateOrderRequest struct {
	Kind          string `json:"kind"` // product | vpn
	ProductID     string `json:"product_id,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	ServerID      string `json:"server_id,omitempty"`
	Devices       int    `json:"devices,omitempty"`
	Months        int    `json:"months,omitempty"`
	PaymentMethod string `json:"payment_method"` // transfer | wallet | card
	CouponCode    string `json:"coupon_code,omitempty"`
	// card pass-through only
	PaymentToken string `json:"payment_token,omitempty"`
}

type CreateOrderResponse struct {
	OrderNo     string `json:"order_no"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
	Discount    int64  `json:"discount,omitempty"`
	PayBefore   string `json:"pay_before,omitempty"`
}

type RestockKey struct {
	Serial string `json:"serial"`
	Login  string `json:"login,omitempty"`
	Extra  string `json:"extra,omitempty"`
}

type RestockRequest struct {
	Keys []RestockKey `json:"keys"`
}

type RestockResponse struct {
	ProductID string `json:"product_id"`
	Added     int    `json:"added"`
	Stock     int64  `json:"stock"`
}

type DecisionRequest struct {
	OrderNo  string `json:"order_no"`
	Decision string `json:"decision"` // approve | reject
	Reason   string `json:"reason,omitempty"`
}

type DecisionResponse struct {
	OrderNo string `json:"order_no"`
	Status  string `json:"status"`
	Changed bool   `json:"changed"`
	Detail  string `json:"detail,omitempty"`
}

// BotCallback is the signed chat-bot webhook payload.
type BotCallback struct {
	Action     string `json:"action"` // approve | reject
	OrderNo    string `json:"order_no"`
	CallbackID string `json:"callback_id,omitempty"`
	MessageID  int64  `json:"message_id,omitempty"`
	Operator   string `json:"operator,omitempty"`
}

// StreamEvent is pushed over the per-user live event stream.
type StreamEvent struct {
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	NotificationID uint   `json:"notification_id"`
	OrderNo        string `json:"order_no,omitempty"`
}

type OrderResponse struct {
	OrderNo        string          `json:"order_no"`
	Kind           string          `json:"kind"`
	Status         string          `json:"status"`
	TotalAmount    int64           `json:"total_amount"`
	ReviewReason   string          `json:"review_reason,omitempty"`
	DeliveredKeys  []DeliveredKey  `json:"delivered_keys,omitempty"`
	VPNCredentials *VPNCredentials `json:"vpn_credentials,omitempty"`
}

type DeliveredKey struct {
	Serial string `json:"serial"`
	Login  string `json:"login,omitempty"`
	Extra  string `json:"extra,omitempty"`
}

type VPNCredentials struct {
	ClientEmail string `json:"client_email"`
	SubLink     string `json:"sub_link"`
	ConfigLink  string `json:"config_link"`
	Protocol    string `json:"protocol"`
	ExpiresAt   string `json:"expires_at"`
}
