package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/ir-tracker/internal/auth"
	"github.com/codyseavey/ir-tracker/internal/config"
	"github.com/codyseavey/ir-tracker/internal/database"
	"github.com/codyseavey/ir-tracker/internal/models"
	"github.com/codyseavey/ir-tracker/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCatalog struct{}

func (stubCatalog) GetSets(context.Context, ...string) ([]models.Expansion, error) {
	return []models.Expansion{{ID: "sv1", Name: "Scarlet & Violet", Slug: "sv1", Series: "Scarlet & Violet"}}, nil
}

func (stubCatalog) GetSet(_ context.Context, id string) (*models.Expansion, error) {
	if id != "sv1" {
		return nil, nil
	}
	return &models.Expansion{ID: "sv1", Name: "Scarlet & Violet", Slug: "sv1"}, nil
}

func (stubCatalog) GetSetCards(_ context.Context, setID string, _ ...string) ([]models.Card, error) {
	if setID != "sv1" {
		return nil, nil
	}
	return []models.Card{
		{ID: "sv1-1", Name: "Sprigatito", Expansion: "sv1", Number: "1", Rarity: models.RarityIllustrationRare, Type: models.CardTypeIllustrationRare},
		{ID: "sv1-2", Name: "Pikachu", Expansion: "sv1", Number: "2", Rarity: models.RarityIllustrationRare, Type: models.CardTypeIllustrationRare},
	}, nil
}

type stubListings struct{}

func (stubListings) GetExpansionProducts(context.Context, int) ([]models.Listing, error) {
	return []models.Listing{
		{ID: 1, Name: "Pikachu IR", Condition: "Near Mint", PriceCents: 1500, Currency: "EUR", HubAvailable: true},
		{ID: 2, Name: "Pikachu IR", Condition: "Heavily Played", PriceCents: 200, Currency: "EUR", HubAvailable: true},
	}, nil
}

type testServer struct {
	router *gin.Engine
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.Open("file::memory:", false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	cfg := &config.Config{
		CORSOrigins: []string{"http://localhost:5173"},
		Auth:        config.AuthConfig{AdminUsers: []string{"admin-1"}},
	}
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	catalog := stubCatalog{}
	catalogSvc := services.NewCatalogService(db, catalog)
	statsSvc := services.NewStatsService(db, catalog, catalogSvc, 2)
	syncSvc := services.NewCatalogSyncService(catalog, catalogSvc, statsSvc, nil, 2)
	cardTrader := services.NewCardTraderService("http://127.0.0.1:0", "", 10, services.UpstreamOptions{})

	if _, err := syncSvc.SyncAll(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	router := SetupRouter(Dependencies{
		Config:      cfg,
		Tokens:      tokens,
		Google:      auth.NewGoogleHandler(auth.GoogleConfig{}, tokens),
		Catalog:     catalogSvc,
		Stats:       statsSvc,
		Wishlist:    services.NewWishlistService(db),
		Binders:     services.NewBinderService(db),
		Marketplace: services.NewMarketplaceService(stubListings{}, services.ExpansionMap{"sv1": 3212}),
		Quota:       cardTrader,
		Sync:        syncSvc,
	})
	return &testServer{router: router, tokens: tokens}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, _, err := s.tokens.Issue(userID, "", "")
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/expansions/sv1/cards", "/api/stats", "/api/wishlist", "/api/binders"} {
		code, env := s.do(t, http.MethodGet, path, "", nil)
		if code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", path, code)
		}
		if env.Success {
			t.Errorf("GET %s reported success", path)
		}
	}
}

func TestCollectToggleAndStats(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/expansions/sv1/cards", "user-1", nil)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("merged view = %d %+v", code, env)
	}
	cards := decode[[]models.Card](t, env.Data)
	if len(cards) != 2 || cards[0].IsCollected {
		t.Fatalf("unexpected merged cards %+v", cards)
	}

	code, env = s.do(t, http.MethodPatch, "/api/cards/sv1-2/collected", "user-1", map[string]bool{"isCollected": true})
	if code != http.StatusOK {
		t.Fatalf("toggle = %d %s", code, env.Error)
	}
	card := decode[models.Card](t, env.Data)
	if !card.IsCollected || card.DateCollected == nil {
		t.Errorf("toggle result %+v", card)
	}

	code, env = s.do(t, http.MethodGet, "/api/stats", "user-1", nil)
	if code != http.StatusOK {
		t.Fatalf("stats = %d %s", code, env.Error)
	}
	stats := decode[map[string]models.ExpansionStat](t, env.Data)
	if got := stats["sv1"]; got.Total != 2 || got.Collected != 1 || got.Percentage != 50 {
		t.Errorf("sv1 stats = %+v", got)
	}

	code, _ = s.do(t, http.MethodPatch, "/api/cards/sv1-2/collected", "user-1", map[string]string{})
	if code != http.StatusBadRequest {
		t.Errorf("missing isCollected = %d, want 400", code)
	}
	code, _ = s.do(t, http.MethodPatch, "/api/cards/nope/collected", "user-1", map[string]bool{"isCollected": true})
	if code != http.StatusNotFound {
		t.Errorf("unknown card = %d, want 404", code)
	}
}

func TestBulkCollected(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{"updates": []map[string]any{
		{"cardId": "sv1-1", "isCollected": true},
		{"cardId": "sv1-2", "isCollected": true},
	}}
	code, env := s.do(t, http.MethodPut, "/api/cards/collected", "user-1", body)
	if code != http.StatusOK {
		t.Fatalf("bulk = %d %s", code, env.Error)
	}

	code, _ = s.do(t, http.MethodPut, "/api/cards/collected", "user-1", map[string]any{"updates": []any{}})
	if code != http.StatusBadRequest {
		t.Errorf("empty bulk = %d, want 400", code)
	}
}

func TestInvalidCardType(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/api/expansions/sv1/cards?type=common", "user-1", nil)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestMalformedExpansionSlug(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/expansions/sv1%20OR%20set.id:sv2/cards",
		"/api/expansions/sv1%20OR%20set.id:sv2/cards?source=catalog",
	} {
		code, env := s.do(t, http.MethodGet, path, "user-1", nil)
		if code != http.StatusBadRequest || env.Success {
			t.Errorf("GET %s = %d %+v, want 400", path, code, env)
		}
	}
}

func TestWishlistEndpoints(t *testing.T) {
	s := newTestServer(t)

	add := map[string]any{"card": map[string]string{"id": "sv1-1", "name": "Sprigatito"}, "price": 4.5}
	code, env := s.do(t, http.MethodPost, "/api/wishlist", "user-1", add)
	if code != http.StatusCreated {
		t.Fatalf("add = %d %s", code, env.Error)
	}
	item := decode[models.WishlistItem](t, env.Data)

	add["price"] = 3.0
	code, _ = s.do(t, http.MethodPost, "/api/wishlist", "user-1", add)
	if code != http.StatusOK {
		t.Errorf("re-add = %d, want 200", code)
	}

	code, _ = s.do(t, http.MethodPost, "/api/wishlist", "user-1", map[string]any{"card": map[string]string{}, "price": 1})
	if code != http.StatusBadRequest {
		t.Errorf("missing card id = %d, want 400", code)
	}

	code, _ = s.do(t, http.MethodDelete, "/api/wishlist/"+item.ID, "user-2", nil)
	if code != http.StatusNotFound {
		t.Errorf("foreign delete = %d, want 404", code)
	}

	code, env = s.do(t, http.MethodDelete, "/api/wishlist", "user-1", nil)
	if code != http.StatusOK {
		t.Fatalf("clear = %d", code)
	}
	cleared := decode[map[string]int](t, env.Data)
	if cleared["deleted"] != 1 {
		t.Errorf("cleared %d items, want 1", cleared["deleted"])
	}
}

func TestBinderEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/binders", "user-1", map[string]any{"name": "Main", "slotCount": 180})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %s", code, env.Error)
	}
	binder := decode[models.Binder](t, env.Data)

	code, _ = s.do(t, http.MethodPost, "/api/binders", "user-1", map[string]any{"name": "Main", "slotCount": 360})
	if code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", code)
	}
	code, _ = s.do(t, http.MethodPost, "/api/binders", "user-1", map[string]any{"name": "Other", "slotCount": 100})
	if code != http.StatusBadRequest {
		t.Errorf("bad slotCount = %d, want 400", code)
	}

	slotPath := "/api/binders/" + binder.ID + "/slots/5"
	code, env = s.do(t, http.MethodPut, slotPath, "user-1", map[string]string{"cardId": "sv1-1"})
	if code != http.StatusOK {
		t.Fatalf("place = %d %s", code, env.Error)
	}
	code, _ = s.do(t, http.MethodPut, slotPath, "user-2", map[string]string{"cardId": "sv1-1"})
	if code != http.StatusForbidden {
		t.Errorf("foreign place = %d, want 403", code)
	}
	code, _ = s.do(t, http.MethodPut, "/api/binders/"+binder.ID+"/slots/abc", "user-1", map[string]string{"cardId": "sv1-1"})
	if code != http.StatusBadRequest {
		t.Errorf("bad slot = %d, want 400", code)
	}

	code, env = s.do(t, http.MethodGet, "/api/binders/"+binder.ID+"/slots", "user-1", nil)
	if code != http.StatusOK {
		t.Fatalf("slots = %d", code)
	}
	slots := decode[[]models.BinderSlot](t, env.Data)
	if len(slots) != 1 || slots[0].SlotNumber != 5 {
		t.Errorf("slots = %+v", slots)
	}

	code, _ = s.do(t, http.MethodDelete, slotPath, "user-1", nil)
	if code != http.StatusOK {
		t.Errorf("remove = %d", code)
	}
	code, _ = s.do(t, http.MethodDelete, slotPath, "user-1", nil)
	if code != http.StatusNotFound {
		t.Errorf("remove again = %d, want 404", code)
	}

	code, _ = s.do(t, http.MethodDelete, "/api/binders/"+binder.ID, "user-1", nil)
	if code != http.StatusOK {
		t.Errorf("delete = %d", code)
	}
}

func TestMarketplaceBestPrice(t *testing.T) {
	s := newTestServer(t)

	body := map[string]string{"name": "Pikachu", "expansion": "sv1", "type": "illustration_rare"}
	code, env := s.do(t, http.MethodPost, "/api/marketplace/best-price", "user-1", body)
	if code != http.StatusOK {
		t.Fatalf("best-price = %d %s", code, env.Error)
	}
	got := decode[struct {
		Found   bool            `json:"found"`
		Listing *models.Listing `json:"listing"`
	}](t, env.Data)
	if !got.Found || got.Listing == nil || got.Listing.ID != 1 {
		t.Errorf("best-price = %+v", got)
	}

	code, _ = s.do(t, http.MethodPost, "/api/marketplace/search", "user-1", map[string]string{"name": "Pikachu"})
	if code != http.StatusBadRequest {
		t.Errorf("missing expansion = %d, want 400", code)
	}

	code, env = s.do(t, http.MethodGet, "/api/marketplace/status", "user-1", nil)
	if code != http.StatusOK {
		t.Errorf("status = %d", code)
	}
}

func TestAdminSyncRequiresAdmin(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/admin/sync", "user-1", nil)
	if code != http.StatusForbidden {
		t.Errorf("non-admin sync = %d, want 403", code)
	}

	code, env := s.do(t, http.MethodPost, "/api/admin/sync", "admin-1", map[string]string{"expansion": "sv1"})
	if code != http.StatusOK {
		t.Fatalf("admin sync = %d %s", code, env.Error)
	}
	result := decode[services.SyncResult](t, env.Data)
	if result.CardsUpserted != 2 {
		t.Errorf("sync result = %+v", result)
	}
}
