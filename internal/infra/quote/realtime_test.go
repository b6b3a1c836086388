package quote

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
)

func newTestCache() *RealtimeCache {
	cfg := &infra.Config{}
	cfg.Broker.TimeoutSec = 5
	return NewRealtimeCache(cfg)
}

func TestHandleMessageTradeTick(t *testing.T) {
	rc := newTestCache()

	rc.handleMessage([]byte("0|H0STCNT0|001|005930^093015^71200^5^..."))

	price, ok := rc.Price("005930")
	if !ok {
		t.Fatal("expected cached price")
	}
	if !price.Equal(decimal.NewFromInt(71200)) {
		t.Errorf("price = %s, want 71200", price)
	}
}

func TestHandleMessageIgnoresControlFrames(t *testing.T) {
	rc := newTestCache()

	rc.handleMessage([]byte(`{"header":{"tr_id":"PINGPONG"}}`))
	rc.handleMessage([]byte(""))
	rc.handleMessage([]byte("0|H0STASP0|001|005930^1^2")) // different tr_id
	rc.handleMessage([]byte("0|H0STCNT0|001"))            // too few parts
	rc.handleMessage([]byte("0|H0STCNT0|001|005930^093015^0^...")) // zero price

	if _, ok := rc.Price("005930"); ok {
		t.Error("no frame should have produced a price")
	}
}

func TestIsPingPong(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want bool
	}{
		{"pingpong", `{"header":{"tr_id":"PINGPONG","datetime":"20260830120000"}}`, true},
		{"subscribe ack", `{"header":{"tr_id":"H0STCNT0"},"body":{"rt_cd":"0"}}`, false},
		{"malformed json", `{"header":`, false},
		{"empty", ``, false},
	}
	for _, c := range cases {
		if got := isPingPong([]byte(c.msg)); got != c.want {
			t.Errorf("%s: isPingPong = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestPingPongEchoedToServer(t *testing.T) {
	received := make(chan []byte, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, msg, err := conn.ReadMessage(); err == nil {
			received <- msg
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	rc := newTestCache()
	ping := []byte(`{"header":{"tr_id":"PINGPONG","datetime":"20260830120000"}}`)
	rc.handleControl(conn, ping)
	rc.handleControl(conn, []byte(`{"header":{"tr_id":"H0STCNT0"}}`)) // no reply expected

	select {
	case got := <-received:
		if !bytes.Equal(got, ping) {
			t.Errorf("echoed frame = %s, want verbatim ping", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pingpong frame was not echoed back")
	}
}

func TestPriceStaleness(t *testing.T) {
	rc := newTestCache()

	rc.mu.Lock()
	rc.prices["005930"] = cachedPrice{
		price: decimal.NewFromInt(71000),
		at:    time.Now().Add(-2 * staleAfter),
	}
	rc.mu.Unlock()

	if _, ok := rc.Price("005930"); ok {
		t.Error("stale price must not be served")
	}
}

type fixedProvider struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fixedProvider) CurrentPrice(ctx context.Context, symbol string, market domain.Market) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func TestCachedProviderPrefersRealtime(t *testing.T) {
	rc := newTestCache()
	rc.handleMessage([]byte("0|H0STCNT0|001|005930^093015^71200^"))

	rest := &fixedProvider{price: decimal.NewFromInt(70000)}
	p := NewCachedProvider(rc, rest)

	price, err := p.CurrentPrice(context.Background(), "005930", domain.MarketKR)
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(71200)) {
		t.Errorf("price = %s, want realtime 71200", price)
	}
	if rest.calls != 0 {
		t.Error("REST provider should not be consulted on cache hit")
	}
}

func TestCachedProviderFallsBackToREST(t *testing.T) {
	rc := newTestCache()
	rest := &fixedProvider{price: decimal.NewFromInt(70000)}
	p := NewCachedProvider(rc, rest)

	price, err := p.CurrentPrice(context.Background(), "005930", domain.MarketKR)
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(70000)) {
		t.Errorf("price = %s, want REST 70000", price)
	}
	if !rc.watched["005930"] {
		t.Error("cache miss should register the symbol for watching")
	}
}

func TestCachedProviderUSAlwaysREST(t *testing.T) {
	rc := newTestCache()
	rest := &fixedProvider{price: decimal.RequireFromString("226.5")}
	p := NewCachedProvider(rc, rest)

	price, err := p.CurrentPrice(context.Background(), "AAPL", domain.MarketUS)
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("226.5")) {
		t.Errorf("price = %s", price)
	}
	if len(rc.watched) != 0 {
		t.Error("US symbols must not be registered on the domestic feed")
	}
}
