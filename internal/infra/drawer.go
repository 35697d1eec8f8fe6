package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DrawerKick is sent to the hardware sidecar to pop a terminal's cash drawer
// after a cash payment.
type DrawerKick struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Terminal  string `json:"terminal,omitempty"`
	Amount    string `json:"amount"`
	Change    string `json:"change,omitempty"`
}

// DrawerClient talks to the cash drawer sidecar over HTTP. Calls go through a
// circuit breaker so a dead sidecar fails fast instead of tying up workers.
// Drawer kicks are best effort and never affect the ledger.
type DrawerClient struct {
	sidecarURL string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

func NewDrawerClient(sidecarURL string, breaker *CircuitBreaker) *DrawerClient {
	if breaker == nil {
		breaker = NewCircuitBreaker("drawer", DefaultCBConfig())
	}
	return &DrawerClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		breaker:    breaker,
	}
}

// Enabled reports whether a sidecar URL is configured.
func (c *DrawerClient) Enabled() bool { return c != nil && c.sidecarURL != "" }

// BreakerState exposes the breaker state for the health endpoint.
func (c *DrawerClient) BreakerState() CBState { return c.breaker.State() }

// Kick sends a POST to the sidecar's /kick endpoint.
func (c *DrawerClient) Kick(ctx context.Context, kick DrawerKick) error {
	body, err := json.Marshal(kick)
	if err != nil {
		return fmt.Errorf("drawer: marshal payload: %w", err)
	}
	return c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sidecarURL+"/kick", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("drawer: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("drawer: sidecar unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("drawer: sidecar returned %d", resp.StatusCode)
		}
		return nil
	})
}
