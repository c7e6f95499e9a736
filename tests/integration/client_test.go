package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/btoron/ofs-go/internal/testutil"
	"github.com/btoron/ofs-go/pkg/cache"
	"github.com/btoron/ofs-go/pkg/client"
	"github.com/btoron/ofs-go/pkg/pagination"
	"github.com/btoron/ofs-go/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newClient builds an OFS client pointed at the mock instance.
func newClient(t *testing.T, mock *testutil.MockOFS, redisClient *redis.Client, mutate func(*client.Config)) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(mock.URL(), "acme", "test-app", "secret")
	cfg.Redis = redisClient
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullRequestFlow tests the complete request flow:
// Rate Limit Check → Cache Miss → OFS Request → Cache Store → Cache Hit.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockOFS()
	defer mock.Close()
	mock.SetResponse("/rest/ofscCore/v1/activities/100", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"activityId": 100, "status": "pending"}`,
	})

	c := newClient(t, mock, redisClient, nil)
	ctx := context.Background()

	// Request 1: cache miss, goes to the instance
	resp1, err := c.Get(ctx, "/rest/ofscCore/v1/activities/100", nil)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("Request 1 status = %d, want %d", resp1.StatusCode, http.StatusOK)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("After request 1: OFS requests = %d, want 1", mock.GetRequestCount())
	}

	// Request 2: served from cache, no network request
	resp2, err := c.Get(ctx, "/rest/ofscCore/v1/activities/100", nil)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if mock.GetRequestCount() != 1 {
		t.Errorf("After request 2: OFS requests = %d, want 1 (cache hit)", mock.GetRequestCount())
	}
	if string(body1) != string(body2) {
		t.Errorf("Cached body = %s, want %s", body2, body1)
	}
}

// TestCacheExpiration tests that expired cache entries are not served.
func TestCacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockOFS()
	defer mock.Close()
	mock.SetResponse("/rest/ofscCore/v1/users/admin", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"login": "admin"}`,
	})

	c := newClient(t, mock, redisClient, func(cfg *client.Config) {
		cfg.CacheTTL = 1 * time.Second
	})
	ctx := context.Background()

	resp1, err := c.Get(ctx, "/rest/ofscCore/v1/users/admin", nil)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	resp1.Body.Close()

	// Verify the entry landed in the cache
	manager := cache.NewManager(redisClient)
	key := cache.Key{Endpoint: "/rest/ofscCore/v1/users/admin"}
	entry, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}
	if entry.IsExpired() {
		t.Error("Entry should not be expired yet")
	}

	// Wait past the TTL
	time.Sleep(1500 * time.Millisecond)

	if _, err := manager.Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected cache miss after expiration, got: %v", err)
	}

	// Next request must hit the instance again
	resp2, err := c.Get(ctx, "/rest/ofscCore/v1/users/admin", nil)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	resp2.Body.Close()

	if mock.GetRequestCount() != 2 {
		t.Errorf("OFS requests = %d, want 2 (cache expired)", mock.GetRequestCount())
	}
}

// TestRateLimitCooldown tests that a 429 response records a shared cooldown
// that blocks subsequent requests until reset.
func TestRateLimitCooldown(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockOFS()
	defer mock.Close()
	mock.SetResponse("/rest/ofscCore/v1/activities", testutil.MockResponse{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "30"},
		Body:       `{"title": "Too Many Requests"}`,
	})

	c := newClient(t, mock, redisClient, func(cfg *client.Config) {
		cfg.MaxRetries = 1 // fail immediately so the test doesn't wait out backoff
	})
	ctx := context.Background()

	// First request hits the 429 and trips the gate
	if _, err := c.Get(ctx, "/rest/ofscCore/v1/activities", nil); err == nil {
		t.Fatal("Expected first request to fail with rate limit error")
	}
	requestsAfterTrip := mock.GetRequestCount()

	// Second request is blocked before reaching the network
	_, err := c.Get(ctx, "/rest/ofscCore/v1/activities", nil)
	if !errors.Is(err, client.ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got: %v", err)
	}
	if mock.GetRequestCount() != requestsAfterTrip {
		t.Errorf("OFS requests = %d, want %d (blocked by cooldown)", mock.GetRequestCount(), requestsAfterTrip)
	}

	// Clearing the cooldown lets requests through again
	gate := ratelimit.NewGate(redisClient, zerolog.Nop())
	if err := gate.Reset(ctx); err != nil {
		t.Fatalf("Failed to reset cooldown: %v", err)
	}

	mock.SetResponse("/rest/ofscCore/v1/activities", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"items": [], "totalResults": 0}`,
	})

	resp, err := c.Get(ctx, "/rest/ofscCore/v1/activities", nil)
	if err != nil {
		t.Fatalf("Request after reset failed: %v", err)
	}
	resp.Body.Close()
}

// TestRetry5xxErrors tests that server errors are retried until success.
func TestRetry5xxErrors(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockOFS()
	defer mock.Close()

	attempts := 0
	mock.SetHandler("/rest/ofscCore/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"title": "server error"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"items": [], "totalResults": 0}`))
	})

	c := newClient(t, mock, redisClient, func(cfg *client.Config) {
		cfg.MaxRetries = 3
	})
	ctx := context.Background()

	resp, err := c.Get(ctx, "/rest/ofscCore/v1/subscriptions", nil)
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Final status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if attempts != 3 {
		t.Errorf("Request attempts = %d, want 3 (2 retries + 1 success)", attempts)
	}
}

// TestNoRetry4xxErrors tests that client errors are surfaced without retries.
func TestNoRetry4xxErrors(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockOFS()
	defer mock.Close()
	mock.SetResponse("/rest/ofscCore/v1/activities/999999", testutil.MockResponse{
		StatusCode: 404,
		Body:       `{"title": "Not found"}`,
	})

	c := newClient(t, mock, redisClient, nil)
	ctx := context.Background()

	resp, err := c.Get(ctx, "/rest/ofscCore/v1/activities/999999", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("OFS requests = %d, want 1 (no retries for 4xx)", mock.GetRequestCount())
	}
}

// TestPaginatedFetchWithCache tests a bounded parallel collection fetch and
// verifies that a repeat fetch is served entirely from the cache.
func TestPaginatedFetchWithCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockOFS()
	defer mock.Close()

	const totalItems = 230
	const pageSize = 50
	mock.SetCollection("/rest/ofscCore/v1/resources", testutil.CollectionItems(totalItems), nil)

	c := newClient(t, mock, redisClient, nil)
	ctx := context.Background()

	opts := pagination.Options{
		Strategy:      pagination.StrategyBounded,
		MaxConcurrent: 3,
	}

	result, err := pagination.FetchAll(ctx, c.Pages("/rest/ofscCore/v1/resources", nil), pageSize, opts)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if len(result.Items) != totalItems {
		t.Errorf("Items = %d, want %d", len(result.Items), totalItems)
	}
	if result.TotalCount != totalItems {
		t.Errorf("TotalCount = %d, want %d", result.TotalCount, totalItems)
	}

	wantPages := (totalItems + pageSize - 1) / pageSize
	if mock.GetRequestCount() != wantPages {
		t.Errorf("OFS requests = %d, want %d", mock.GetRequestCount(), wantPages)
	}

	// Repeat fetch: every page is a cache hit
	result2, err := pagination.FetchAll(ctx, c.Pages("/rest/ofscCore/v1/resources", nil), pageSize, opts)
	if err != nil {
		t.Fatalf("Second FetchAll failed: %v", err)
	}
	if len(result2.Items) != totalItems {
		t.Errorf("Second fetch items = %d, want %d", len(result2.Items), totalItems)
	}
	if mock.GetRequestCount() != wantPages {
		t.Errorf("OFS requests after cached fetch = %d, want %d", mock.GetRequestCount(), wantPages)
	}
}
