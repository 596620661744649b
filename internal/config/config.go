package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"keyshop.db"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`

	Orders     Orders     `envPrefix:"ORDERS_"`
	Quarantine Quarantine `envPrefix:"QUARANTINE_"`
	Fraud      Fraud      `envPrefix:"FRAUD_"`
	OCR        OCR        `envPrefix:"OCR_"`
	Bot        Bot        `envPrefix:"BOT_"`
	VPN        VPN        `envPrefix:"VPN_"`
	Checkout   Checkout   `envPrefix:"BRAINTREE_"`
	Admin      Admin      `envPrefix:"ADMIN_"`
}

type Orders struct {
	PaymentWindowMinutes int `env:"PAYMENT_WINDOW_MINUTES" envDefault:"30"`
	ReaperIntervalSec    int `env:"REAPER_INTERVAL_SEC" envDefault:"60"`
}

type Quarantine struct {
	Root          string `env:"ROOT" envDefault:"uploads/quarantine"`
	ReleasedRoot  string `env:"RELEASED_ROOT" envDefault:"uploads/receipts"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"5242880"`
}

type Fraud struct {
	// HighAmountThreshold is in minor units of the shop currency.
	HighAmountThreshold int64 `env:"HIGH_AMOUNT_THRESHOLD" envDefault:"500000"`
}

type OCR struct {
	Enabled       bool    `env:"ENABLED" envDefault:"true"`
	BaseURL       string  `env:"BASE_URL"`
	MinConfidence float64 `env:"MIN_CONFIDENCE" envDefault:"0.6"`
}

type Bot struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.telegram.org"`
	Token         string `env:"TOKEN"`
	OperatorChat  int64  `env:"OPERATOR_CHAT"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type VPN struct {
	PanelBaseURL string `env:"PANEL_BASE_URL"`
	PanelUser    string `env:"PANEL_USER"`
	PanelSecret  string `env:"PANEL_SECRET"`
	// Servers is the comma-separated set of sellable server ids.
	Servers      []string `env:"SERVERS" envSeparator:"," envDefault:"sg1,nl1,us1"`
	MonthlyPrice int64    `env:"MONTHLY_PRICE" envDefault:"150000"` // per device, minor units
	Protocol     string   `env:"PROTOCOL" envDefault:"vless"`
	DataLimitGB  int      `env:"DATA_LIMIT_GB" envDefault:"0"`
}

type Checkout struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Admin struct {
	Token string `env:"TOKEN"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
