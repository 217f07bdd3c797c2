package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// idleServer accepts connections and discards everything it reads.
func idleServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// logsServer confirms each logsSubscribe with subID and then emits one
// notification for signature sig.
func logsServer(t *testing.T, subID int64, sig string, requests chan<- wsRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}
			if requests != nil {
				requests <- req
			}

			_ = c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID})
			time.Sleep(20 * time.Millisecond)
			_ = c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "logsNotification",
				"params": map[string]interface{}{
					"subscription": subID,
					"result": map[string]interface{}{
						"context": map[string]interface{}{"slot": 100},
						"value": map[string]interface{}{
							"signature": sig,
							"logs":      []string{"Program log: Instruction: Buy"},
							"err":       nil,
						},
					},
				},
			})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWSClient_Connect(t *testing.T) {
	server := idleServer(t)

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	requests := make(chan wsRequest, 1)
	server := logsServer(t, 12345, "testsig", requests)

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"CuratorWallet"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	req := <-requests
	if req.Method != "logsSubscribe" {
		t.Errorf("expected logsSubscribe, got %s", req.Method)
	}
	selector, _ := req.Params[0].(map[string]interface{})
	mentions, _ := selector["mentions"].([]interface{})
	if len(mentions) != 1 || mentions[0] != "CuratorWallet" {
		t.Errorf("unexpected mentions: %v", selector)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_ResubscribesAfterReconnect(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		_ = json.Unmarshal(msg, &req)
		subID := int64(100 + n)
		_ = c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID})

		if n == 1 {
			// Drop the first connection right after subscribing.
			time.Sleep(20 * time.Millisecond)
			return
		}
		time.Sleep(50 * time.Millisecond)
		_ = c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "logsNotification",
			"params": map[string]interface{}{
				"subscription": subID,
				"result": map[string]interface{}{
					"value": map[string]interface{}{"signature": "after-reconnect"},
				},
			},
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"w"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "after-reconnect" {
			t.Errorf("expected after-reconnect, got %s", notif.Signature)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for notification after reconnect")
	}
	if client.Reconnects() < 1 {
		t.Errorf("expected at least one reconnect, got %d", client.Reconnects())
	}
}

func TestWSClient_ResubscribeWithReusedIDs(t *testing.T) {
	// Every connection numbers its subscriptions from 1, so the ids handed
	// out after a reconnect collide with the ones from the first connection.
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		var next int64
		wallets := make(map[int64]string)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				return
			}
			next++
			_ = c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": next})

			if n == 1 {
				if next == 2 {
					time.Sleep(20 * time.Millisecond)
					return
				}
				continue
			}

			selector, _ := req.Params[0].(map[string]interface{})
			mentions, _ := selector["mentions"].([]interface{})
			wallet, _ := mentions[0].(string)
			wallets[next] = wallet
			if next < 2 {
				continue
			}

			time.Sleep(50 * time.Millisecond)
			for id, w := range wallets {
				_ = c.WriteJSON(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "logsNotification",
					"params": map[string]interface{}{
						"subscription": id,
						"result": map[string]interface{}{
							"value": map[string]interface{}{"signature": "sig-" + w},
						},
					},
				})
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	chA, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"walletA"}})
	if err != nil {
		t.Fatalf("SubscribeLogs A: %v", err)
	}
	chB, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"walletB"}})
	if err != nil {
		t.Fatalf("SubscribeLogs B: %v", err)
	}

	for name, ch := range map[string]<-chan LogNotification{"walletA": chA, "walletB": chB} {
		select {
		case notif := <-ch:
			if notif.Signature != "sig-"+name {
				t.Errorf("%s: expected sig-%s, got %s", name, name, notif.Signature)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("%s: no notification after reconnect", name)
		}
	}

	client.subsMu.RLock()
	live, unbound := len(client.subs), len(client.unbound)
	client.subsMu.RUnlock()
	if live != 2 || unbound != 0 {
		t.Errorf("expected 2 live subscriptions and none unbound, got %d and %d", live, unbound)
	}
}

func TestWSClient_CloseClosesChannels(t *testing.T) {
	server := logsServer(t, 7, "sig", nil)

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"w"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	<-ch

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscription channel to be closed")
	}
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := idleServer(t)

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeLogs(ctx, LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := idleServer(t)

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond
	client, err := NewWSClient(context.Background(), wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"w"}}); err == nil {
		t.Error("expected subscription timeout")
	}
}
