package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/internal/mocks"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) frame {
	t.Helper()
	var f frame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func decodeCounts(t *testing.T, f frame) domain.UnreadCounts {
	t.Helper()
	var counts domain.UnreadCounts
	if err := json.Unmarshal(f.Payload, &counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	return counts
}

func TestBadgeHandler_PushesCountsAndHandlesNavigate(t *testing.T) {
	store := mocks.NewMockUnreadStore(map[domain.Section]int{
		domain.SectionMessages:          3,
		domain.SectionTenderSubmissions: 2,
		domain.SectionCommercialOffers:  1,
	})
	routes, err := application.NewRouteTable(map[string]string{"/admin/messages": "messages"})
	if err != nil {
		t.Fatal(err)
	}
	logger := mocks.NewMockLogger()
	agg := application.NewUnreadAggregator(logger, store, mocks.NewMockChangeFeed(), routes, application.AggregatorConfig{})
	defer agg.Stop()
	agg.RefreshAll(context.Background())

	cfg := mocks.NewMockConfigProvider()
	appCfg := *cfg.Get()
	appCfg.App.WSPingIntervalSeconds = 60
	cfg.UpdateConfig(&appCfg)

	srv := httptest.NewServer(NewBadgeHandler(logger, cfg, agg))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	ready := readFrame(t, ctx, c)
	if ready.Type != domain.MessageTypeReady {
		t.Fatalf("first frame type = %q, want ready", ready.Type)
	}
	if got := decodeCounts(t, ready); got.Messages != 3 || got.Total() != 6 {
		t.Fatalf("ready counts = %+v", got)
	}

	if err := wsjson.Write(ctx, c, map[string]any{"type": "navigate", "payload": map[string]string{"path": "/admin/messages"}}); err != nil {
		t.Fatalf("write navigate: %v", err)
	}
	update := readFrame(t, ctx, c)
	if update.Type != domain.MessageTypeUnreadCounts {
		t.Fatalf("frame type = %q, want unread_counts", update.Type)
	}
	if got := decodeCounts(t, update); got.Messages != 0 || got.TenderSubmissions != 2 {
		t.Errorf("counts after navigate = %+v", got)
	}

	if err := wsjson.Write(ctx, c, map[string]any{"type": "select_chat"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, ctx, c); f.Type != domain.MessageTypeError {
		t.Errorf("frame type = %q, want error", f.Type)
	}
}
