package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/miyamoto-labs/easypoly/models"
	"github.com/miyamoto-labs/easypoly/storage"
)

func testRouter(store storage.TraderStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(store).Register(r)
	return r
}

func seedStore(t *testing.T, store *storage.MockStore, traders ...models.TrackedTrader) {
	t.Helper()
	for _, trader := range traders {
		if _, err := store.UpsertTrader(context.Background(), trader); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGetTopTraders(t *testing.T) {
	store := storage.NewMockStore()
	seedStore(t, store,
		models.TrackedTrader{WalletAddress: "0xaaa", CompositeRank: 0.9, Active: true},
		models.TrackedTrader{WalletAddress: "0xbbb", CompositeRank: 0.7, Active: true},
		models.TrackedTrader{WalletAddress: "0xoff", CompositeRank: 0.99, Active: false},
	)
	r := testRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/traders/top?limit=10", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Traders []models.TrackedTrader `json:"traders"`
		Count   int                    `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want inactive rows excluded", resp.Count)
	}
	if resp.Traders[0].WalletAddress != "0xaaa" {
		t.Errorf("traders[0] = %q, want ranked by composite", resp.Traders[0].WalletAddress)
	}
}

func TestGetTraderNotFound(t *testing.T) {
	store := storage.NewMockStore()
	r := testRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/traders/0xmissing", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetTraderNormalizesAddress(t *testing.T) {
	store := storage.NewMockStore()
	seedStore(t, store, models.TrackedTrader{WalletAddress: "0xAbC", Alias: "steady", Active: true})
	r := testRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/traders/0xABC", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Trader models.TrackedTrader `json:"trader"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Trader.Alias != "steady" {
		t.Errorf("alias = %q", resp.Trader.Alias)
	}
}

func TestGetRisingStars(t *testing.T) {
	store := storage.NewMockStore()
	seedStore(t, store,
		models.TrackedTrader{WalletAddress: "0xstar", RisingStar: true, Active: true},
		models.TrackedTrader{WalletAddress: "0xplain", Active: true},
	)
	r := testRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/traders/rising-stars", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Traders []models.TrackedTrader `json:"traders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Traders) != 1 || resp.Traders[0].WalletAddress != "0xstar" {
		t.Errorf("rising stars = %+v", resp.Traders)
	}
}

func TestFollowTrader(t *testing.T) {
	store := storage.NewMockStore()
	r := testRouter(store)

	body := strings.NewReader(`{"alias": "my-guy"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/traders/0xHandPicked/follow", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, err := store.GetTrader(context.Background(), "0xhandpicked")
	if err != nil || stored == nil {
		t.Fatalf("follow not persisted: %v, %v", stored, err)
	}
	if stored.Source != "custom" {
		t.Errorf("Source = %q, want custom", stored.Source)
	}
	if stored.Alias != "my-guy" {
		t.Errorf("Alias = %q", stored.Alias)
	}
	if !stored.Active {
		t.Error("custom follow should be active")
	}
}

func TestFollowTraderDefaultAlias(t *testing.T) {
	store := storage.NewMockStore()
	r := testRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/traders/0xabcdef0123456789/follow", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	stored, _ := store.GetTrader(context.Background(), "0xabcdef0123456789")
	if stored == nil || stored.Alias != "0xabcdef01..." {
		t.Errorf("alias = %+v, want truncated address default", stored)
	}
}

func TestGetRecentSignals(t *testing.T) {
	store := storage.NewMockStore()
	if err := store.RecordTraderTrade(context.Background(), models.TraderTrade{
		TraderID: "1", MarketID: "will-rates-drop", Direction: "YES", Amount: 120,
	}); err != nil {
		t.Fatal(err)
	}
	r := testRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signals/recent", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Signals []models.TraderTrade `json:"signals"`
		Count   int                  `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Signals[0].MarketID != "will-rates-drop" {
		t.Errorf("signals = %+v", resp.Signals)
	}
}
