package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sundayezeilo/linktracker/internal/config"
	"github.com/sundayezeilo/linktracker/internal/linktracker"
	"github.com/sundayezeilo/linktracker/internal/migrate"
)

const testBaseURL = "http://localhost:8080"

// testApp holds the application components for e2e testing against a real
// Postgres instance.
type testApp struct {
	mux     *http.ServeMux
	dbPool  *pgxpool.Pool
	cleanup func()
}

// setupTestApp starts a Postgres container, applies the embedded migrations,
// and wires the full handler stack the way the app does.
func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	migrationDB := stdlib.OpenDBFromPool(dbPool)
	if err := migrate.Up(ctx, migrationDB, config.DriverPostgres); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := migrationDB.Close(); err != nil {
		t.Fatalf("failed to release migration connection: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	repo := linktracker.NewPostgresRepository(dbPool, nil)
	resolver := linktracker.NewResolver(repo)
	svc := linktracker.NewService(repo, resolver, nil)

	handler := linktracker.NewHandler(linktracker.HandlerConfig{
		Service:  svc,
		Resolver: resolver,
		Logger:   logger,
		BaseURL:  testBaseURL,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /link-tracker/list", handler.List)
	mux.HandleFunc("POST /create-link-tracker", handler.CreateLink)
	mux.HandleFunc("GET /l/{link}", handler.Redirect)
	mux.HandleFunc("PUT /l/{link}", handler.Invalidate)
	mux.HandleFunc("GET /l/{link}/stats", handler.Stats)

	cleanup := func() {
		dbPool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}

	return &testApp{
		mux:     mux,
		dbPool:  dbPool,
		cleanup: cleanup,
	}
}

func (app *testApp) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	app.mux.ServeHTTP(rr, req)
	return rr
}

func (app *testApp) createLink(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	rr := app.do("POST", "/create-link-tracker", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("failed to create link: status %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return resp
}

// linkToken strips the base URL prefix from a full masked link.
func linkToken(t *testing.T, resp map[string]any) string {
	t.Helper()

	maskedLink, _ := resp["link"].(string)
	token, ok := strings.CutPrefix(maskedLink, testBaseURL+"/l/")
	if !ok {
		t.Fatalf("masked link %q does not carry the expected prefix", maskedLink)
	}
	return token
}

func TestHealthCheck_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	rr := app.do("GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["message"] != "OK" {
		t.Errorf("expected message 'OK', got %v", response["message"])
	}
	if _, ok := response["timestamp"].(float64); !ok {
		t.Errorf("expected numeric timestamp, got %v", response["timestamp"])
	}
}

func TestCreateLinkTracker_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	tests := []struct {
		name           string
		requestBody    map[string]any
		expectedStatus int
		checkResponse  func(*testing.T, map[string]any)
	}{
		{
			name: "create plain link",
			requestBody: map[string]any{
				"target": "https://example.com/test",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp map[string]any) {
				link, _ := resp["link"].(string)
				if !strings.HasPrefix(link, testBaseURL+"/l/") {
					t.Errorf("expected masked link under %s/l/, got %v", testBaseURL, resp["link"])
				}
				if resp["target"] != "https://example.com/test" {
					t.Errorf("expected target 'https://example.com/test', got %v", resp["target"])
				}
				if resp["valid"] != true {
					t.Errorf("expected valid true, got %v", resp["valid"])
				}
				if resp["visited"] != float64(0) {
					t.Errorf("expected visited 0, got %v", resp["visited"])
				}
			},
		},
		{
			name: "create link with password and expiration",
			requestBody: map[string]any{
				"target":     "https://example.com/protected",
				"password":   "pw1",
				"expiration": "2999-01-01",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp map[string]any) {
				if resp["expiration"] != "2999-01-01" {
					t.Errorf("expected expiration '2999-01-01', got %v", resp["expiration"])
				}
			},
		},
		{
			name:           "missing target",
			requestBody:    map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid target format",
			requestBody: map[string]any{
				"target": "not-a-valid-url",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "malformed expiration date",
			requestBody: map[string]any{
				"target":     "https://example.com",
				"expiration": "01/01/2999",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do("POST", "/create-link-tracker", tt.requestBody)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
				t.Logf("response body: %s", rr.Body.String())
			}

			if tt.expectedStatus == http.StatusCreated && tt.checkResponse != nil {
				var response map[string]any
				if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				tt.checkResponse(t, response)
			}
		})
	}
}

func TestRedirect_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := app.createLink(t, map[string]any{
		"target": "https://example.com/redirect-test",
	})
	token := linkToken(t, created)

	t.Run("resolves the masked link", func(t *testing.T) {
		rr := app.do("GET", "/l/"+token, nil)

		if rr.Code != http.StatusFound {
			t.Fatalf("expected status 302, got %d", rr.Code)
		}
		if location := rr.Header().Get("Location"); location != "https://example.com/redirect-test" {
			t.Errorf("expected location 'https://example.com/redirect-test', got %s", location)
		}
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		rr := app.do("GET", "/l/nosuch", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestPasswordProtection_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := app.createLink(t, map[string]any{
		"target":   "https://example.com/secret",
		"password": "pw1",
	})
	token := linkToken(t, created)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
	}{
		{"no password", "", http.StatusUnauthorized},
		{"wrong password", "?password=wrong", http.StatusUnauthorized},
		{"correct password", "?password=pw1", http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do("GET", "/l/"+token+tt.query, nil)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}

	// Only the successful attempt counted.
	rr := app.do("GET", "/l/"+token+"/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats failed with status %d", rr.Code)
	}
	var stats map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats["visited"] != float64(1) {
		t.Errorf("expected visited 1, got %v", stats["visited"])
	}
}

func TestExpiration_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := app.createLink(t, map[string]any{
		"target":     "https://example.com/expired",
		"expiration": "2000-01-01",
	})
	token := linkToken(t, created)

	t.Run("expired link does not redirect", func(t *testing.T) {
		rr := app.do("GET", "/l/"+token, nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("expired link still reports stats", func(t *testing.T) {
		rr := app.do("GET", "/l/"+token+"/stats", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestInvalidation_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := app.createLink(t, map[string]any{
		"target": "https://example.com/doomed",
	})
	token := linkToken(t, created)

	// Invalidate twice; both calls succeed.
	for i := range 2 {
		rr := app.do("PUT", "/l/"+token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("invalidate call %d failed with status %d: %s", i+1, rr.Code, rr.Body.String())
		}
	}

	if rr := app.do("GET", "/l/"+token, nil); rr.Code != http.StatusNotFound {
		t.Errorf("redirect after invalidation: expected 404, got %d", rr.Code)
	}
	if rr := app.do("GET", "/l/"+token+"/stats", nil); rr.Code != http.StatusNotFound {
		t.Errorf("stats after invalidation: expected 404, got %d", rr.Code)
	}

	// The record stays visible in the listing.
	rr := app.do("GET", "/link-tracker/list", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list failed with status %d", rr.Code)
	}

	var links []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&links); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 record in listing, got %d", len(links))
	}
	if links[0]["valid"] != false {
		t.Errorf("expected listed record to be invalid, got %v", links[0]["valid"])
	}
}

func TestVisitCountTracking_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	ctx := context.Background()

	created := app.createLink(t, map[string]any{
		"target": "https://example.com/track-test",
	})
	token := linkToken(t, created)

	for i := range 3 {
		rr := app.do("GET", "/l/"+token, nil)
		if rr.Code != http.StatusFound {
			t.Errorf("resolve attempt %d failed with status %d", i+1, rr.Code)
		}
	}

	// Check the count straight from the store.
	repo := linktracker.NewPostgresRepository(app.dbPool, nil)
	link, err := repo.FindOneByField(ctx, linktracker.FieldMaskedLink, created["link"].(string))
	if err != nil {
		t.Fatalf("failed to read link from database: %v", err)
	}
	if link.Visited != 3 {
		t.Errorf("expected visit count 3, got %d", link.Visited)
	}
}

func TestConcurrentRedirects_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	created := app.createLink(t, map[string]any{
		"target": "https://example.com/concurrent",
	})
	token := linkToken(t, created)

	concurrency := 10
	errChan := make(chan error, concurrency)

	for i := range concurrency {
		go func(index int) {
			rr := app.do("GET", "/l/"+token, nil)
			if rr.Code != http.StatusFound {
				errChan <- fmt.Errorf("request %d failed with status %d", index, rr.Code)
				return
			}
			errChan <- nil
		}(i)
	}

	for range concurrency {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent request failed: %v", err)
		}
	}

	// No increments lost under concurrency.
	rr := app.do("GET", "/l/"+token+"/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats failed with status %d", rr.Code)
	}
	var stats map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats["visited"] != float64(concurrency) {
		t.Errorf("expected visited %d, got %v", concurrency, stats["visited"])
	}
}

func TestConcurrentLinkCreation_E2E(t *testing.T) {
	app := setupTestApp(t)
	defer app.cleanup()

	concurrency := 10
	errChan := make(chan error, concurrency)
	linkChan := make(chan string, concurrency)

	for i := range concurrency {
		go func(index int) {
			rr := app.do("POST", "/create-link-tracker", map[string]any{
				"target": fmt.Sprintf("https://example.com/concurrent-%d", index),
			})
			if rr.Code != http.StatusCreated {
				errChan <- fmt.Errorf("request %d failed with status %d", index, rr.Code)
				return
			}

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				errChan <- err
				return
			}

			linkChan <- response["link"].(string)
			errChan <- nil
		}(i)
	}

	links := make(map[string]bool)
	for range concurrency {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent request failed: %v", err)
			continue
		}
		link := <-linkChan
		if links[link] {
			t.Errorf("duplicate masked link generated: %s", link)
		}
		links[link] = true
	}

	if len(links) != concurrency {
		t.Errorf("expected %d unique masked links, got %d", concurrency, len(links))
	}
}
