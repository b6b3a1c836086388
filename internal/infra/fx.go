package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const fxUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// dunamuResponse represents the Dunamu Forex API response
type dunamuResponse struct {
	Code         string  `json:"code"`
	CurrencyCode string  `json:"currencyCode"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	BasePrice    float64 `json:"basePrice"`
}

// FXClient polls the USD/KRW exchange rate from the Dunamu Forex API.
// The rate enriches overseas buyable inquiries with a KRW equivalent;
// a zero rate means no fetch has succeeded yet and callers skip the
// conversion.
type FXClient struct {
	rate         decimal.Decimal
	mu           sync.RWMutex
	pollInterval time.Duration
	apiURL       string
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewFXClient creates a client with the default 1 minute poll interval.
func NewFXClient() *FXClient {
	return &FXClient{
		rate:         decimal.Zero,
		pollInterval: 60 * time.Second,
		apiURL:       "https://quotation-api-cdn.dunamu.com/v1/forex/recent?codes=FRX.KRWUSD",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewFXClientWithConfig creates a client with custom configuration
func NewFXClientWithConfig(apiURL string, pollIntervalSec int) *FXClient {
	client := NewFXClient()
	if apiURL != "" {
		client.apiURL = apiURL
	}
	if pollIntervalSec > 0 {
		client.pollInterval = time.Duration(pollIntervalSec) * time.Second
	}
	return client
}

// Start begins polling for exchange rate updates
func (c *FXClient) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := c.fetchRate(ctx); err != nil {
		slog.Warn("Initial exchange rate fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Exchange rate polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Exchange rate polling stopped")
				return
			case <-ticker.C:
				if err := c.fetchRate(ctx); err != nil {
					slog.Warn("Exchange rate fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchRate fetches the current exchange rate with retry
func (c *FXClient) fetchRate(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doFetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (c *FXClient) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return err
	}

	// Browser-like User-Agent to avoid bot detection
	req.Header.Set("User-Agent", fxUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var data []dunamuResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty response from Dunamu API")
	}

	newRate := decimal.NewFromFloat(data[0].BasePrice)

	c.mu.Lock()
	oldRate := c.rate
	c.rate = newRate
	c.mu.Unlock()

	if !oldRate.Equal(newRate) {
		slog.Info("Exchange rate updated",
			slog.String("rate", newRate.String()),
			slog.String("old_rate", oldRate.String()),
		)
	}
	return nil
}

// Stop stops the polling
func (c *FXClient) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

// Rate returns the last fetched USD/KRW rate, zero if none yet.
func (c *FXClient) Rate() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}
