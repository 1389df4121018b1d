package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
	"github.com/MJE43/mogwai-breed-go/internal/store"
	"github.com/MJE43/mogwai-breed-go/internal/telemetry"
)

const (
	parent1DNA = "00112233445566778899aabbccddeeff"
	parent2DNA = "ffeeddccbbaa99887766554433221100"
)

func newTestDB(t *testing.T) *store.SQLiteDB {
	t.Helper()
	db, err := store.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, db store.DB) *Server {
	t.Helper()
	opts := Options{
		Scheme:        engine.SchemeHMAC,
		ScanTimeout:   30 * time.Second,
		MaxNonceRange: 100_000,
		Workers:       4,
	}
	if db == nil {
		return NewServer(nil, zerolog.Nop(), telemetry.New(), opts)
	}
	return NewServer(db, zerolog.Nop(), telemetry.New(), opts)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, errType string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	var e EngineError
	decode(t, w, &e)
	if e.Type != errType {
		t.Errorf("Expected error type %s, got %s (%s)", errType, e.Type, e.Message)
	}
	if got := w.Header().Get("X-Error-Type"); got != errType {
		t.Errorf("Expected X-Error-Type %s, got %s", errType, got)
	}
}

func scanBody() map[string]any {
	return map[string]any{
		"trait":       "mutations",
		"parent1":     map[string]any{"dna": parent1DNA, "generation": 3, "rarity": "Rare"},
		"parent2":     map[string]any{"dna": parent2DNA, "generation": 5, "rarity": "Epic"},
		"seeds":       map[string]any{"server": "scan_server", "client": "scan_client"},
		"nonce_start": 1,
		"nonce_end":   2000,
		"target_op":   "ge",
		"target_val":  12,
	}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		db     store.DB
		status HealthStatus
	}{
		{"with_store", newTestDB(t), HealthStatusHealthy},
		{"store_disabled", nil, HealthStatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(t, tt.db).Routes(), http.MethodGet, "/health", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp HealthCheckResponse
			decode(t, w, &resp)
			if resp.Status != tt.status {
				t.Errorf("Expected status %s, got %s", tt.status, resp.Status)
			}
			for _, name := range []string{"traits", "database", "scanner"} {
				if _, ok := resp.Checks[name]; !ok {
					t.Errorf("Missing %s check", name)
				}
			}
		})
	}
}

func TestProbes(t *testing.T) {
	h := newTestServer(t, newTestDB(t)).Routes()

	w := do(t, h, http.MethodGet, "/health/ready", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("readiness: expected 200, got %d", w.Code)
	}
	var ready map[string]any
	decode(t, w, &ready)
	if ready["ready"] != true {
		t.Errorf("Expected ready=true, got %v", ready["ready"])
	}

	w = do(t, h, http.MethodGet, "/health/live", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Engine-Version"); got != EngineVersion {
		t.Errorf("Expected X-Engine-Version %s, got %q", EngineVersion, got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Routes()

	do(t, h, http.MethodGet, "/api/v1/traits", nil)
	w := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`mogbreed_http_requests_total{method="GET",route="/api/v1/traits",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestTraitsEndpoint(t *testing.T) {
	w := do(t, newTestServer(t, nil).Routes(), http.MethodGet, "/api/v1/traits", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp TraitsResponse
	decode(t, w, &resp)
	if len(resp.Traits) != 7 {
		t.Errorf("Expected 7 traits, got %d", len(resp.Traits))
	}
	if resp.EngineVersion == "" {
		t.Error("Expected engine version in response")
	}
}

func TestVersionEndpoint(t *testing.T) {
	w := do(t, newTestServer(t, nil).Routes(), http.MethodGet, "/api/v1/version", nil)
	var info VersionInfo
	decode(t, w, &info)
	if info.EngineVersion != EngineVersion {
		t.Errorf("Expected %s, got %s", EngineVersion, info.EngineVersion)
	}
}

func TestPairEndpoint(t *testing.T) {
	w := do(t, newTestServer(t, nil).Routes(), http.MethodPost, "/api/v1/pair", map[string]any{
		"breed_type": "DomRez",
		"parent1":    parent1DNA,
		"parent2":    parent2DNA,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PairResponse
	decode(t, w, &resp)
	want := "00112233445566778899aabbccddeeff7766554433221100ffeeddccbbaa9988"
	if got := resp.Genome.String(); got != want {
		t.Errorf("Expected genome %s, got %s", want, got)
	}
}

func TestBreedEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Routes()

	t.Run("raw_entropy", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/api/v1/breed", map[string]any{
			"breed_type": "DomDom",
			"parent1":    map[string]any{"dna": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "generation": 1, "rarity": "Minor"},
			"parent2":    map[string]any{"dna": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "generation": 1, "rarity": "Minor"},
			"entropy":    "055a0976b25ed5fc4aab37f1726d6f65b3209b50d98e637425d90fcab6f637a0",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp BreedResponse
		decode(t, w, &resp)
		if got := resp.Offspring.DNA.String(); got != "1a06cbaa1b01ca9ac06bccaa1aacbccc" {
			t.Errorf("dna = %s", got)
		}
		if got := resp.Offspring.Evolution.String(); got != "7a0f8baa7b0f8aea8feb8caa7aacbcec" {
			t.Errorf("evolution = %s", got)
		}
		if resp.Offspring.Generation != 2 || resp.Offspring.Rarity != genetic.Normal {
			t.Errorf("got generation %d rarity %s, want 2 Normal", resp.Offspring.Generation, resp.Offspring.Rarity)
		}
		if resp.Traits["mutations"] != 8 {
			t.Errorf("mutations = %v, want 8", resp.Traits["mutations"])
		}
	})

	t.Run("seeds_and_nonce", func(t *testing.T) {
		body := map[string]any{
			"parent1": map[string]any{"dna": parent1DNA, "generation": 3, "rarity": "Rare"},
			"parent2": map[string]any{"dna": parent2DNA, "generation": 5, "rarity": "Epic"},
			"seeds":   map[string]any{"server": "scan_server", "client": "scan_client"},
			"nonce":   7,
		}
		w := do(t, h, http.MethodPost, "/api/v1/breed", body)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp BreedResponse
		decode(t, w, &resp)
		if resp.Offspring.BreedType != genetic.RezRez {
			t.Errorf("breed type = %s, want RezRez from nonce 7", resp.Offspring.BreedType)
		}
		if got := resp.Entropy.String(); got != "fb13baa29654b47c8b41ae7d961d648475a1f3bdd0cd8aa1205bc73162e91a74" {
			t.Errorf("entropy = %s", got)
		}
		if got := resp.Offspring.DNA.String(); got != "fb4fedbc7c5b798981175337453367e7" {
			t.Errorf("dna = %s", got)
		}
		if resp.Offspring.Generation != 5 || resp.Traits["mutations"] != 12 || resp.Traits["recombinations"] != 1 {
			t.Errorf("got generation %d traits %v", resp.Offspring.Generation, resp.Traits)
		}
	})
}

func TestBreedValidation(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	parents := `"parent1":{"dna":"` + parent1DNA + `","generation":1,"rarity":0},"parent2":{"dna":"` + parent2DNA + `","generation":1,"rarity":0}`

	tests := []struct {
		name    string
		body    string
		errType string
	}{
		{"no_entropy_source", `{` + parents + `}`, ErrTypeValidation},
		{"both_sources", `{` + parents + `,"entropy":"` + strings.Repeat("00", 32) + `","seeds":{"server":"a","client":"b"}}`, ErrTypeValidation},
		{"missing_client_seed", `{` + parents + `,"seeds":{"server":"a"}}`, ErrTypeValidation},
		{"unknown_scheme", `{` + parents + `,"seeds":{"server":"a","client":"b"},"scheme":"md5"}`, ErrTypeInvalidParams},
		{"short_dna", `{"parent1":{"dna":"abcd"},"parent2":{"dna":"` + parent2DNA + `"},"entropy":"` + strings.Repeat("00", 32) + `"}`, ErrTypeValidation},
		{"unknown_field", `{` + parents + `,"colour":"blue"}`, ErrTypeValidation},
		{"bad_breed_type", `{` + parents + `,"breed_type":"Sideways","entropy":"` + strings.Repeat("00", 32) + `"}`, ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/breed", tt.body)
			expectError(t, w, http.StatusBadRequest, tt.errType)
		})
	}
}

func TestGenesisEndpoint(t *testing.T) {
	w := do(t, newTestServer(t, nil).Routes(), http.MethodPost, "/api/v1/genesis", map[string]any{
		"seeds": map[string]any{"server": "scan_server", "client": "scan_client"},
		"nonce": 3,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp GenesisResponse
	decode(t, w, &resp)
	if got := resp.DNA.String(); got != "ca8a8f2d2678c7a7b40f42406f0768bf" {
		t.Errorf("dna = %s", got)
	}
	if resp.Scheme != engine.SchemeHMAC {
		t.Errorf("scheme = %s", resp.Scheme)
	}
}

func TestScanPersistsRun(t *testing.T) {
	h := newTestServer(t, newTestDB(t)).Routes()

	body := scanBody()
	body["limit"] = 10
	w := do(t, h, http.MethodPost, "/api/v1/scan", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScanResponse
	decode(t, w, &resp)
	got := make([]uint64, len(resp.Hits))
	for i, hit := range resp.Hits {
		got[i] = hit.Nonce
	}
	want := []uint64{7, 9, 11, 13, 16, 19, 21, 25, 33, 35}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hit nonces = %v, want %v", got, want)
	}
	if !resp.Summary.LimitReached || resp.Summary.HitsFound != 10 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.RunID == "" {
		t.Fatal("Expected run_id for a persisted scan")
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/"+resp.RunID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET run: expected 200, got %d", w.Code)
	}
	var run store.Run
	decode(t, w, &run)
	if run.Trait != "mutations" || run.HitCount != 10 || run.HitLimit != 10 {
		t.Errorf("run = %+v", run)
	}
	if run.ServerSeedHash != "f7d7da60403b691e588efb8a471c0a2500c0557289a4fd856dfb718a47b9a6b0" {
		t.Errorf("server_seed_hash = %s", run.ServerSeedHash)
	}
	if run.Scheme != string(engine.SchemeHMAC) {
		t.Errorf("scheme = %s", run.Scheme)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/"+resp.RunID+"/hits?page=2&per_page=4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET hits: expected 200, got %d", w.Code)
	}
	var page store.HitsPage
	decode(t, w, &page)
	if page.TotalCount != 10 || page.TotalPages != 3 || len(page.Hits) != 4 {
		t.Fatalf("page = total %d pages %d len %d", page.TotalCount, page.TotalPages, len(page.Hits))
	}
	if page.Hits[0].Nonce != 16 || page.Hits[0].DeltaNonce == nil || *page.Hits[0].DeltaNonce != 3 {
		t.Errorf("first hit of page 2 = %+v", page.Hits[0])
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs?trait=mutations", nil)
	var list store.RunsList
	decode(t, w, &list)
	if list.TotalCount != 1 || len(list.Runs) != 1 || list.Runs[0].ID != resp.RunID {
		t.Errorf("runs for mutations = %+v", list)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs?trait=generation", nil)
	list = store.RunsList{}
	decode(t, w, &list)
	if list.TotalCount != 0 || len(list.Runs) != 0 {
		t.Errorf("runs for generation = %+v", list)
	}
}

func TestScanWithPredicate(t *testing.T) {
	body := scanBody()
	body["target_op"] = "ge"
	body["target_val"] = 0
	body["predicate"] = "o.generation >= 7"
	w := do(t, newTestServer(t, nil).Routes(), http.MethodPost, "/api/v1/scan", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ScanResponse
	decode(t, w, &resp)
	if resp.Summary.HitsFound != 6 {
		t.Errorf("hits = %d, want 6", resp.Summary.HitsFound)
	}
	if resp.RunID != "" {
		t.Errorf("Expected no run_id with the store disabled, got %s", resp.RunID)
	}
}

func TestScanErrors(t *testing.T) {
	h := newTestServer(t, nil).Routes()

	tests := []struct {
		name    string
		mutate  func(b map[string]any)
		errType string
	}{
		{"unknown_trait", func(b map[string]any) { b["trait"] = "wings" }, ErrTypeTraitNotFound},
		{"missing_trait", func(b map[string]any) { delete(b, "trait") }, ErrTypeValidation},
		{"reversed_range", func(b map[string]any) { b["nonce_start"] = 50; b["nonce_end"] = 10 }, ErrTypeInvalidNonce},
		{"range_too_large", func(b map[string]any) { b["nonce_end"] = 200_000 }, ErrTypeInvalidNonce},
		{"bad_op", func(b map[string]any) { b["target_op"] = "ne" }, ErrTypeValidation},
		{"between_reversed", func(b map[string]any) { b["target_op"] = "between"; b["target_val2"] = 3 }, ErrTypeValidation},
		{"negative_tolerance", func(b map[string]any) { b["tolerance"] = -1 }, ErrTypeValidation},
		{"missing_server_seed", func(b map[string]any) { b["seeds"] = map[string]any{"client": "c"} }, ErrTypeValidation},
		{"limit_too_large", func(b map[string]any) { b["limit"] = maxLimit + 1 }, ErrTypeValidation},
		{"timeout_too_large", func(b map[string]any) { b["timeout_ms"] = maxTimeoutMs + 1 }, ErrTypeValidation},
		{"bad_predicate", func(b map[string]any) { b["predicate"] = "o.generation >" }, ErrTypeInvalidPredicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := scanBody()
			tt.mutate(body)
			w := do(t, h, http.MethodPost, "/api/v1/scan", body)
			expectError(t, w, http.StatusBadRequest, tt.errType)
		})
	}
}

func TestStreaksEndpoint(t *testing.T) {
	body := scanBody()
	body["target_val"] = 7
	body["top_n"] = 3
	w := do(t, newTestServer(t, nil).Routes(), http.MethodPost, "/api/v1/scan/streaks", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp StreakResponse
	decode(t, w, &resp)
	if resp.TotalFound != 205 || resp.Longest != 60 || len(resp.Streaks) != 3 {
		t.Fatalf("total %d longest %d streaks %d", resp.TotalFound, resp.Longest, len(resp.Streaks))
	}
	first := resp.Streaks[0]
	if first.StartNonce != 1394 || first.EndNonce != 1453 {
		t.Errorf("longest streak = %d..%d, want 1394..1453", first.StartNonce, first.EndNonce)
	}
	if resp.EngineVersion == "" {
		t.Error("Expected engine version in response")
	}
}

func TestSeedHashEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Routes()

	w := do(t, h, http.MethodPost, "/api/v1/seed/hash", SeedHashRequest{ServerSeed: "test_server_seed"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp SeedHashResponse
	decode(t, w, &resp)
	if resp.Hash != "41edd15aeaa5d9532b515a809e6aaa81f2cad2cd7937ef3e30ec0f908c5e0f45" {
		t.Errorf("hash = %s", resp.Hash)
	}
	if strings.Contains(w.Body.String(), "test_server_seed") {
		t.Error("response must not echo the raw seed")
	}

	w = do(t, h, http.MethodPost, "/api/v1/seed/hash", SeedHashRequest{})
	expectError(t, w, http.StatusBadRequest, ErrTypeValidation)
}

func TestRunHistory(t *testing.T) {
	t.Run("store_disabled", func(t *testing.T) {
		h := newTestServer(t, nil).Routes()
		for _, path := range []string{"/api/v1/runs", "/api/v1/runs/abc", "/api/v1/runs/abc/hits"} {
			w := do(t, h, http.MethodGet, path, nil)
			expectError(t, w, http.StatusServiceUnavailable, ErrTypeServiceUnavailable)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		h := newTestServer(t, newTestDB(t)).Routes()
		for _, path := range []string{"/api/v1/runs/missing", "/api/v1/runs/missing/hits"} {
			w := do(t, h, http.MethodGet, path, nil)
			expectError(t, w, http.StatusNotFound, ErrTypeRunNotFound)
		}
	})

	t.Run("bad_page", func(t *testing.T) {
		h := newTestServer(t, newTestDB(t)).Routes()
		w := do(t, h, http.MethodGet, "/api/v1/runs?page=zero", nil)
		expectError(t, w, http.StatusBadRequest, ErrTypeValidation)
	})
}

func TestCORSPreflight(t *testing.T) {
	w := do(t, newTestServer(t, nil).Routes(), http.MethodOptions, "/api/v1/scan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryHandler(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.errorHandler.RecoveryHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := do(t, h, http.MethodGet, "/", nil)
	expectError(t, w, http.StatusInternalServerError, ErrTypeInternal)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err     error
		errType string
		status  int
	}{
		{scan.ErrTraitNotFound, ErrTypeTraitNotFound, http.StatusBadRequest},
		{scan.ErrInvalidRange, ErrTypeInvalidNonce, http.StatusBadRequest},
		{scan.ErrInvalidPredicate, ErrTypeInvalidPredicate, http.StatusBadRequest},
		{scan.ErrTimeout, ErrTypeTimeout, http.StatusRequestTimeout},
		{store.ErrNotFound, ErrTypeRunNotFound, http.StatusNotFound},
		{engine.ErrUnknownScheme, ErrTypeInvalidParams, http.StatusBadRequest},
		{genetic.ErrHexLength, ErrTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			errType, status := classify(tt.err)
			if errType != tt.errType || status != tt.status {
				t.Errorf("classify(%v) = %s %d, want %s %d", tt.err, errType, status, tt.errType, tt.status)
			}
		})
	}
}

func TestSanitizeContext(t *testing.T) {
	got := sanitizeContext(map[string]any{
		"clientSeed":  "secret_client",
		"seeds":       engine.Seeds{Server: "s", Client: "c"},
		"token":       "abc",
		"nonce":       5,
	})
	if _, ok := got["clientSeed"]; ok {
		t.Error("raw clientSeed leaked")
	}
	if got["clientSeed_hash"] != hashSeed("secret_client") {
		t.Errorf("clientSeed_hash = %v", got["clientSeed_hash"])
	}
	if got["server_seed_hash"] != hashSeed("s") || got["client_seed_hash"] != hashSeed("c") {
		t.Errorf("seeds not hashed: %v", got)
	}
	if got["token"] != "[REDACTED]" || got["nonce"] != 5 {
		t.Errorf("unexpected sanitized context %v", got)
	}
	if len(hashSeed("x")) != 16 || hashSeed("") != "empty" {
		t.Error("hashSeed shape")
	}
}
