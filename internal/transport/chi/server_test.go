package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/rules"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
	"github.com/kailas-cloud/facetdex/internal/index"
	facetsuc "github.com/kailas-cloud/facetdex/internal/usecase/facets"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	rebuilduc "github.com/kailas-cloud/facetdex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/facetdex/internal/usecase/search"
	taxonomyuc "github.com/kailas-cloud/facetdex/internal/usecase/taxonomy"
)

// --- Mocks ---

type memSource struct {
	items   []catalog.Item
	pingErr error
}

func (m *memSource) IterateItems(_ context.Context, fn func(catalog.Item) error) error {
	for _, it := range m.items {
		if err := fn(it); err != nil {
			return err
		}
	}
	return nil
}

func (m *memSource) Count(context.Context) (int, error) { return len(m.items), nil }
func (m *memSource) Ping(context.Context) error         { return m.pingErr }
func (m *memSource) Close() error                       { return nil }

// --- Fixture ---

type testEnv struct {
	router *gochi.Mux
	store  *index.Store
	src    *memSource
}

func fixtureItems() []catalog.Item {
	return []catalog.Item{
		catalog.New("p1", "A-100", "LED panel", "", "acme", "L100", "", "", 30, "", []catalog.Attribute{
			catalog.NewAttribute("color", catalog.Text("white"), ""),
			catalog.NewAttribute("power_w", catalog.Number(20), "W"),
			catalog.NewAttribute("dimmable", catalog.Bool(true), ""),
		}),
		catalog.New("p2", "A-200", "Floodlight", "", "acme", "L100", "", "", 80, "", []catalog.Attribute{
			catalog.NewAttribute("color", catalog.Text("black"), ""),
			catalog.NewAttribute("power_w", catalog.Number(60), "W"),
		}),
		catalog.New("p3", "B-100", "Junction box", "", "bolt", "X900", "", "", 5, "", nil),
	}
}

func newTestEnv(t *testing.T, adminTokens []string, publish bool) *testEnv {
	t.Helper()

	forest, err := taxonomy.BuildForest([]taxonomy.NodeSpec{
		{Code: "lighting", Name: "Lighting", DisplayOrder: 1, Active: true, FastColumn: true},
		{Code: "hidden", Name: "Hidden", DisplayOrder: 2, Active: false},
	})
	if err != nil {
		t.Fatal(err)
	}

	lighting, err := rules.New("lighting-by-group", 10, "lighting", "", true, rules.GroupCodes("L100"))
	if err != nil {
		t.Fatal(err)
	}
	dimmable, err := rules.New("dimmable-flag", 20, "", "dimmable", true, rules.AttributeEquals("dimmable", "true"))
	if err != nil {
		t.Fatal(err)
	}
	ruleset := []rules.Rule{lighting, dimmable}

	mkDef := func(key string, kind filterdef.Kind, attrKey string) filterdef.Definition {
		d, err := filterdef.New(key, kind, "", attrKey, "", nil, 0, true)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}
	defs := []filterdef.Definition{
		mkDef("dimmable", filterdef.Boolean, ""),
		mkDef("color", filterdef.Categorical, "color"),
		mkDef("power_w", filterdef.Range, "power_w"),
	}

	src := &memSource{items: fixtureItems()}
	logger := zap.NewNop()
	store := index.NewStore()

	if publish {
		b := index.NewBuilder("gen-http", src, classify.NewEngine(ruleset, forest),
			forest, defs, index.BuilderConfig{}, logger)
		if err := b.Build(context.Background()); err != nil {
			t.Fatal(err)
		}
		gen, err := b.Generation()
		if err != nil {
			t.Fatal(err)
		}
		store.Publish(gen)
	}

	facetsSvc, err := facetsuc.New(store, 0, 0, logger)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(
		searchuc.New(store, 0, logger),
		facetsSvc,
		taxonomyuc.New(store),
		rebuilduc.New(src, forest, ruleset, defs, store, rebuilduc.Config{}, logger),
		healthuc.New(src, store),
		time.Second,
		adminTokens,
		logger,
	)

	r := gochi.NewRouter()
	srv.Routes(r)
	return &testEnv{router: r, store: store, src: src}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

// --- Tests ---

func TestSearch_HTTP(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodPost, "/api/v1/search",
		`{"taxonomy_codes":["lighting"],"sort":"price_asc"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decode[searchResponse](t, w)
	if resp.TotalCount != 2 || resp.Approximate {
		t.Errorf("total = %d approximate = %v, want exact 2", resp.TotalCount, resp.Approximate)
	}
	if len(resp.Items) != 2 || resp.Items[0].ItemID != "p1" || resp.Items[1].ItemID != "p2" {
		t.Errorf("items = %+v", resp.Items)
	}
	if resp.Limit == 0 {
		t.Error("response should echo the clamped limit")
	}
}

func TestSearch_HTTP_HeterogeneousFilters(t *testing.T) {
	env := newTestEnv(t, nil, true)

	// Boolean, array and range values all parse; the numeric value fits no
	// filter shape and is dropped without failing the request.
	w := env.do(t, http.MethodPost, "/api/v1/search",
		`{"filters":{"dimmable":true,"color":["white"],"power_w":{"min":5},"broken":12}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decode[searchResponse](t, w)
	if resp.TotalCount != 1 || resp.Items[0].ItemID != "p1" {
		t.Errorf("resp = %+v, want exactly p1", resp)
	}
}

func TestSearch_HTTP_BadBody(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodPost, "/api/v1/search", `{not json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "bad_request" {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestSearch_HTTP_NoGeneration(t *testing.T) {
	env := newTestEnv(t, nil, false)

	w := env.do(t, http.MethodPost, "/api/v1/search", `{}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "no_generation" {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestFacets_HTTP(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodPost, "/api/v1/facets", `{"taxonomy_codes":["lighting"]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decode[facetsResponse](t, w)
	if resp.Generation != "gen-http" {
		t.Errorf("generation = %s", resp.Generation)
	}
	if resp.TotalCount != 2 {
		t.Errorf("total = %d, want 2", resp.TotalCount)
	}
	if len(resp.Facets) == 0 {
		t.Error("no facet summaries")
	}
}

func TestTaxonomy_HTTP(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodGet, "/api/v1/taxonomy", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[taxonomyResponse](t, w)
	if len(resp.Nodes) != 1 || resp.Nodes[0].Code != "lighting" {
		t.Errorf("nodes = %+v, want only the active lighting node", resp.Nodes)
	}
	if resp.Nodes[0].ItemCount != 2 {
		t.Errorf("item count = %d, want 2", resp.Nodes[0].ItemCount)
	}

	w = env.do(t, http.MethodGet, "/api/v1/taxonomy/lighting", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/taxonomy/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	resp2 := decode[errorResponse](t, w)
	if resp2.Code != "unknown_node" {
		t.Errorf("code = %s", resp2.Code)
	}
}

func TestRebuild_HTTP(t *testing.T) {
	env := newTestEnv(t, nil, false)

	w := env.do(t, http.MethodPost, "/api/v1/admin/rebuild", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decode[rebuildResponse](t, w)
	if resp.Status != rebuilduc.StatusOK || resp.Items != 3 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.PhaseDurationsMs) != 3 {
		t.Errorf("phase durations = %v, want all three phases", resp.PhaseDurationsMs)
	}

	// The rebuild published: search now works.
	if _, err := env.store.Current(); err != nil {
		t.Errorf("no generation published after rebuild: %v", err)
	}
}

func TestRebuild_HTTP_Auth(t *testing.T) {
	env := newTestEnv(t, []string{"secret"}, true)

	w := env.do(t, http.MethodPost, "/api/v1/admin/rebuild", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/admin/rebuild", "",
		map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with bad token", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/admin/rebuild", "",
		map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	// Public endpoints stay open.
	w = env.do(t, http.MethodPost, "/api/v1/search", `{}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, want auth-free 200", w.Code)
	}
}

func TestHealth_HTTP(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	env.src.pingErr = errors.New("connection refused")
	w = env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when the source is down", w.Code)
	}
}
