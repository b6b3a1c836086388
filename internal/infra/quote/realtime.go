package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"stock_go/internal/infra"
)

const (
	trRealtimeTrade  = "H0STCNT0" // domestic realtime trade tick
	maxRetries       = 10
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	staleAfter       = 60 * time.Second
)

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// RealtimeCache keeps the latest domestic trade price per watched
// symbol, fed by the broker's realtime websocket. It is an optimization
// in front of the REST quote path: a missing or stale entry simply
// falls through to REST.
type RealtimeCache struct {
	cfg    *infra.Config
	logger *slog.Logger

	mu       sync.RWMutex
	conn     *websocket.Conn
	approval string
	writeMu  sync.Mutex
	prices   map[string]cachedPrice
	watched  map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRealtimeCache creates the cache worker. Start must be called
// before prices appear.
func NewRealtimeCache(cfg *infra.Config) *RealtimeCache {
	return &RealtimeCache{
		cfg:     cfg,
		logger:  slog.Default().With("module", "realtime_quote"),
		prices:  make(map[string]cachedPrice),
		watched: make(map[string]bool),
	}
}

// Start begins the connection loop. Safe to call when the broker WS URL
// is unset; the cache then stays empty and everything uses REST.
func (rc *RealtimeCache) Start(ctx context.Context) error {
	if rc.cfg.Broker.WSURL == "" || !rc.cfg.HasCredentials() {
		rc.logger.Info("realtime quote feed disabled")
		return nil
	}
	ctx, rc.cancel = context.WithCancel(ctx)
	rc.wg.Add(1)
	go rc.connectionLoop(ctx)
	return nil
}

// Stop tears the connection down and waits for the loop to exit.
func (rc *RealtimeCache) Stop() {
	if rc.cancel != nil {
		rc.cancel()
		rc.closeConnection()
		rc.wg.Wait()
	}
}

// Price returns the cached last trade price when present and fresh.
func (rc *RealtimeCache) Price(symbol string) (decimal.Decimal, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	p, ok := rc.prices[symbol]
	if !ok || time.Since(p.at) > staleAfter {
		return decimal.Zero, false
	}
	return p.price, true
}

// Watch subscribes the symbol's trade feed. Idempotent; takes effect
// immediately on a live connection, otherwise on the next reconnect.
func (rc *RealtimeCache) Watch(symbol string) {
	rc.mu.Lock()
	if rc.watched[symbol] {
		rc.mu.Unlock()
		return
	}
	rc.watched[symbol] = true
	conn := rc.conn
	rc.mu.Unlock()

	if conn != nil {
		if err := rc.subscribe(conn, symbol); err != nil {
			rc.logger.Warn("realtime subscribe failed", slog.String("symbol", symbol), slog.Any("error", err))
		}
	}
}

func (rc *RealtimeCache) connectionLoop(ctx context.Context) {
	defer rc.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := rc.connect(ctx); err != nil {
			rc.logger.Warn("realtime feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			rc.readLoop(ctx)
		}
	}
}

func (rc *RealtimeCache) connect(ctx context.Context) error {
	approvalKey, err := rc.approvalKey(ctx)
	if err != nil {
		return fmt.Errorf("approval key: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, rc.cfg.Broker.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	rc.mu.Lock()
	rc.conn = conn
	rc.approval = approvalKey
	symbols := make([]string, 0, len(rc.watched))
	for s := range rc.watched {
		symbols = append(symbols, s)
	}
	rc.mu.Unlock()

	for _, s := range symbols {
		if err := rc.subscribe(conn, s); err != nil {
			rc.closeConnection()
			return err
		}
	}

	rc.logger.Info("realtime feed connected", slog.Int("subs", len(symbols)))
	return nil
}

// approvalKey requests the websocket approval key; separate from the
// REST access token.
func (rc *RealtimeCache) approvalKey(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     rc.cfg.Broker.AppKey,
		"secretkey":  rc.cfg.Broker.AppSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		rc.cfg.Broker.BaseURL+"/oauth2/Approval", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json")

	client := &http.Client{Timeout: time.Duration(rc.cfg.Broker.TimeoutSec) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ApprovalKey == "" {
		return "", fmt.Errorf("empty approval key")
	}
	return out.ApprovalKey, nil
}

func (rc *RealtimeCache) subscribe(conn *websocket.Conn, symbol string) error {
	rc.mu.RLock()
	approval := rc.approval
	rc.mu.RUnlock()

	msg := map[string]interface{}{
		"header": map[string]string{
			"approval_key": approval,
			"custtype":     "P",
			"tr_type":      "1",
			"content-type": "utf-8",
		},
		"body": map[string]interface{}{
			"input": map[string]string{
				"tr_id":  trRealtimeTrade,
				"tr_key": symbol,
			},
		},
	}

	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (rc *RealtimeCache) readLoop(ctx context.Context) {
	defer rc.closeConnection()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rc.mu.RLock()
		conn := rc.conn
		rc.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			rc.logger.Warn("realtime feed read failed", slog.Any("error", err))
			return
		}
		if len(message) > 0 && message[0] == '{' {
			rc.handleControl(conn, message)
			continue
		}
		rc.handleMessage(message)
	}
}

// handleControl answers JSON control frames. The broker expects its
// PINGPONG frame echoed back verbatim; subscribe acks and error
// notices carry no reply.
func (rc *RealtimeCache) handleControl(conn *websocket.Conn, message []byte) {
	if !isPingPong(message) {
		return
	}
	rc.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, message)
	rc.writeMu.Unlock()
	if err != nil {
		rc.logger.Warn("pingpong reply failed", slog.Any("error", err))
	}
}

func isPingPong(message []byte) bool {
	var frame struct {
		Header struct {
			TrID string `json:"tr_id"`
		} `json:"header"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return false
	}
	return frame.Header.TrID == "PINGPONG"
}

// handleMessage parses a realtime frame. Data frames are pipe-delimited:
// "0|H0STCNT0|001|<payload>" with a caret-delimited payload where
// field 0 is the symbol and field 2 the current trade price. Frames
// starting with "{" are control responses, answered in handleControl.
func (rc *RealtimeCache) handleMessage(message []byte) {
	if len(message) == 0 || message[0] == '{' {
		return
	}

	parts := strings.Split(string(message), "|")
	if len(parts) < 4 || parts[1] != trRealtimeTrade {
		return
	}

	fields := strings.Split(parts[3], "^")
	if len(fields) < 3 {
		return
	}
	symbol := fields[0]
	price, err := decimal.NewFromString(fields[2])
	if err != nil || price.IsZero() {
		return
	}

	rc.mu.Lock()
	rc.prices[symbol] = cachedPrice{price: price, at: time.Now()}
	rc.mu.Unlock()
}

func (rc *RealtimeCache) closeConnection() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.conn != nil {
		rc.conn.Close()
		rc.conn = nil
	}
}
