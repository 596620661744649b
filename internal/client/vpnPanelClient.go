package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"keyshop/internal/config"
)

// VPNPanelClient talks to the remote VPN panel that issues client
// credentials. The panel is independently operated; every call can fail on
// its own and the caller owns the retry semantics.
type VPNPanelClient interface {
	Provision(ctx context.Context, req *ProvisionRequest) (*ProvisionResult, error)
	Revoke(ctx context.Context, serverID, clientUUID string) error
	GetClientStats(ctx context.Context, serverID, clientEmail string) (*ClientStats, error)
}

type vpnPanelClientImpl struct {
	httpClient  *http.Client
	baseURL     string
	panelUser   string
	panelSecret string
}

type ProvisionRequest struct {
	ServerID    string `json:"server_id"`
	Username    string `json:"username"`
	UserID      string `json:"user_id"`
	Devices     int    `json:"devices"`
	ExpiryDays  int    `json:"expiry_days"`
	DataLimitGB int    `json:"data_limit_gb"`
	Protocol    string `json:"protocol"`
}

type ProvisionResult struct {
	ClientEmail string    `json:"client_email"`
	ClientUUID  string    `json:"client_uuid"`
	SubID       string    `json:"sub_id"`
	SubLink     string    `json:"sub_link"`
	ConfigLink  string    `json:"config_link"`
	Protocol    string    `json:"protocol"`
	ExpiryTime  time.Time `json:"expiry_time"`
}

type ClientStats struct {
	ClientEmail string `json:"client_email"`
	UpBytes     int64  `json:"up"`
	DownBytes   int64  `json:"down"`
	Online      bool   `json:"online"`
}

func NewVPNPanelClient(cfg *config.VPN) VPNPanelClient {
	return &vpnPanelClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     cfg.PanelBaseURL,
		panelUser:   cfg.PanelUser,
		panelSecret: cfg.PanelSecret,
	}
}

func (c *vpnPanelClientImpl) Provision(ctx context.Context, provReq *ProvisionRequest) (*ProvisionResult, error) {
	if provReq.Username == "" {
		provReq.Username = "client-" + uuid.NewString()[:8]
	}

	body, err := json.Marshal(provReq)
	if err != nil {
		return nil, fmt.Errorf("marshal provision payload: %w", err)
	}

	url := fmt.Sprintf("%s/panel/servers/%s/clients", c.baseURL, provReq.ServerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vpn panel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vpn panel error %d: %s", resp.StatusCode, string(b))
	}

	var result ProvisionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode vpn panel response: %w", err)
	}
	if result.ClientUUID == "" {
		return nil, fmt.Errorf("vpn panel returned no client uuid")
	}

	return &result, nil
}

func (c *vpnPanelClientImpl) Revoke(ctx context.Context, serverID, clientUUID string) error {
	url := fmt.Sprintf("%s/panel/servers/%s/clients/%s", c.baseURL, serverID, clientUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vpn panel revoke failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vpn panel revoke error %d: %s", resp.StatusCode, string(b))
	}

	return nil
}

func (c *vpnPanelClientImpl) GetClientStats(ctx context.Context, serverID, clientEmail string) (*ClientStats, error) {
	url := fmt.Sprintf("%s/panel/servers/%s/clients/%s/stats", c.baseURL, serverID, clientEmail)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vpn panel stats failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vpn panel stats error %d: %s", resp.StatusCode, string(b))
	}

	var stats ClientStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode vpn panel stats: %w", err)
	}

	return &stats, nil
}

func (c *vpnPanelClientImpl) setAuth(req *http.Request) {
	req.SetBasicAuth(c.panelUser, c.panelSecret)
}
