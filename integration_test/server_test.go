package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behzodk/shortlink/internal/config"
	"github.com/behzodk/shortlink/internal/model"
	"github.com/behzodk/shortlink/internal/observability"
	"github.com/behzodk/shortlink/internal/server"
	"github.com/behzodk/shortlink/internal/testutil"
)

var (
	testDB    *testutil.TestDB
	testCache *testutil.TestCache
	testCfg   *config.Config
	testObs   *observability.Observability
)

// TestMain sets up the test environment once for all tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testutil.SetupTestDB(ctx)
	if err != nil {
		panic("failed to setup test database: " + err.Error())
	}

	testCache, err = testutil.SetupTestCache(ctx)
	if err != nil {
		panic("failed to setup test cache: " + err.Error())
	}

	testCfg, err = config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	testCfg.Server.Port = "0"

	testObs, err = observability.Setup(ctx, observability.Config{
		ServiceName: "shortlink-test",
		Environment: "development",
	})
	if err != nil {
		panic("failed to setup observability: " + err.Error())
	}

	code := m.Run()

	testCache.Teardown(ctx)
	testDB.Teardown(ctx)
	os.Exit(code)
}

func setupTestServer(t *testing.T) (*http.Server, string) {
	gin.SetMode(gin.TestMode)
	srv := server.NewServer(testCfg, testDB.Pool, testCache.Client, testObs, nil)

	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	actualAddr := listener.Addr().String()
	baseURL := "http://" + actualAddr

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			t.Logf("Server error: %v", err)
		}
	}()
	waitForServer(t, baseURL+"/health", 3*time.Second)

	return srv, baseURL
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
			t.Logf("Health check returned %d:", resp.StatusCode)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Server did not become ready within %v", timeout)
}

// noRedirectClient returns redirect responses instead of following them
// so tests can assert on the Location header.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func createLink(t *testing.T, baseURL string, body map[string]interface{}) model.CreateLinkResponse {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/v1/links", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.CreateLinkResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func countVisits(t *testing.T, slug string) int {
	t.Helper()
	var count int
	err := testDB.Pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM visits v
		JOIN short_links l ON l.id = v.short_link_id
		WHERE l.slug = $1
	`, slug).Scan(&count)
	require.NoError(t, err)
	return count
}

// TestHealthCheck verifies the health check endpoint
func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

// TestLinkManagement exercises the management API end to end
func TestLinkManagement(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	t.Run("create, fetch, list and delete a link", func(t *testing.T) {
		created := createLink(t, baseURL, map[string]interface{}{
			"url":  "https://example.com/landing",
			"slug": "mgmt-test",
		})
		assert.Equal(t, "mgmt-test", created.Slug)
		assert.True(t, strings.HasSuffix(created.ShortURL, "/s/mgmt-test"))

		resp, err := http.Get(baseURL + "/api/v1/links/mgmt-test")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var link model.LinkResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&link))
		assert.Equal(t, "https://example.com/landing", link.DestinationURL)
		assert.False(t, link.RequirePasscode)

		listResp, err := http.Get(baseURL + "/api/v1/links")
		require.NoError(t, err)
		defer listResp.Body.Close()
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		var list struct {
			Links []*model.LinkResponse `json:"links"`
		}
		require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
		require.Len(t, list.Links, 1)

		req, err := http.NewRequest("DELETE", baseURL+"/api/v1/links/mgmt-test", nil)
		require.NoError(t, err)
		delResp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		delResp.Body.Close()
		assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

		gone, err := http.Get(baseURL + "/api/v1/links/mgmt-test")
		require.NoError(t, err)
		gone.Body.Close()
		assert.Equal(t, http.StatusNotFound, gone.StatusCode)
	})

	t.Run("duplicate slug returns conflict", func(t *testing.T) {
		createLink(t, baseURL, map[string]interface{}{
			"url":  "https://example.com/one",
			"slug": "dup-test",
		})

		payload, _ := json.Marshal(map[string]string{
			"url":  "https://example.com/two",
			"slug": "dup-test",
		})
		resp, err := http.Post(baseURL+"/api/v1/links", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

// TestPublicLinkResolution covers the plain redirect path
func TestPublicLinkResolution(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	created := createLink(t, baseURL, map[string]interface{}{
		"url":  "https://example.com/sale",
		"slug": "promo",
	})
	require.Equal(t, "promo", created.Slug)

	client := noRedirectClient()

	t.Run("redirects to the destination and logs one visit", func(t *testing.T) {
		req, err := http.NewRequest("GET", baseURL+"/s/promo", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "10.0.0.5, 203.0.113.7")
		req.Header.Set("X-Vercel-IP-City", "London")
		req.Header.Set("X-Vercel-IP-Country", "GB")
		req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1")

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/sale", resp.Header.Get("Location"))
		assert.Equal(t, 1, countVisits(t, "promo"))

		// The visit carries the derived metadata; the first public hop
		// wins in the forwarded chain and public links record no
		// passcode result.
		var ip, location, device, browser string
		var passcodeSuccess *bool
		err = testDB.Pool.QueryRow(ctx, `
			SELECT v.ip_address, v.location, v.device_type, v.browser, v.passcode_success
			FROM visits v JOIN short_links l ON l.id = v.short_link_id
			WHERE l.slug = 'promo'
		`).Scan(&ip, &location, &device, &browser, &passcodeSuccess)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", ip)
		assert.Equal(t, "London, GB", location)
		assert.Equal(t, "mobile", device)
		assert.Equal(t, "safari", browser)
		assert.Nil(t, passcodeSuccess)
	})

	t.Run("unknown slug renders the not-found page", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/s/nope")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "Link not found")
		assert.Equal(t, 0, countVisits(t, "nope"))
	})
}

// TestPasscodeFlow covers the private-link challenge
func TestPasscodeFlow(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	createLink(t, baseURL, map[string]interface{}{
		"url":        "https://example.com/secret",
		"slug":       "vip",
		"visibility": "private",
		"passcode":   "letmein",
	})

	client := noRedirectClient()

	t.Run("challenge page is shown without a passcode and no visit is logged", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/s/vip")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "Passcode required")
		assert.Equal(t, 0, countVisits(t, "vip"))
	})

	t.Run("wrong passcode re-renders the challenge and logs a failed visit", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/s/vip?passcode=wrong")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "That passcode")
		assert.Equal(t, 1, countVisits(t, "vip"))

		var success *bool
		err = testDB.Pool.QueryRow(ctx, `
			SELECT v.passcode_success FROM visits v
			JOIN short_links l ON l.id = v.short_link_id
			WHERE l.slug = 'vip' ORDER BY v.visited_at DESC LIMIT 1
		`).Scan(&success)
		require.NoError(t, err)
		require.NotNil(t, success)
		assert.False(t, *success)
	})

	t.Run("correct passcode redirects and logs a successful visit", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/s/vip?passcode=letmein")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/secret", resp.Header.Get("Location"))
		assert.Equal(t, 2, countVisits(t, "vip"))

		var success *bool
		err = testDB.Pool.QueryRow(ctx, `
			SELECT v.passcode_success FROM visits v
			JOIN short_links l ON l.id = v.short_link_id
			WHERE l.slug = 'vip' ORDER BY v.id DESC LIMIT 1
		`).Scan(&success)
		require.NoError(t, err)
		require.NotNil(t, success)
		assert.True(t, *success)
	})
}

// TestExpiredLink covers the expiry bounce
func TestExpiredLink(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	// Insert an already-expired link directly; the API only accepts
	// future expirations.
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO short_links (id, slug, destination_url, visibility, require_passcode, expires_at)
		VALUES (gen_random_uuid(), 'old-promo', 'https://example.com/old', 'public', false, NOW() - INTERVAL '1 day')
	`)
	require.NoError(t, err)

	client := noRedirectClient()

	resp, err := client.Get(baseURL + "/s/old-promo")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/shorten-url/expired?slug=old-promo", resp.Header.Get("Location"))
	assert.Equal(t, 0, countVisits(t, "old-promo"), "expired links never log visits")

	// Follow the bounce manually.
	page, err := http.Get(baseURL + "/shorten-url/expired?slug=old-promo")
	require.NoError(t, err)
	defer page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)
	body, _ := io.ReadAll(page.Body)
	assert.Contains(t, string(body), "expired")
	assert.Contains(t, string(body), "old-promo")
}

// TestVisitAnalytics covers the visits and stats endpoints
func TestVisitAnalytics(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	createLink(t, baseURL, map[string]interface{}{
		"url":  "https://example.com/tracked",
		"slug": "tracked",
	})

	client := noRedirectClient()
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest("GET", baseURL+"/s/tracked", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0 Safari/537.36")
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
	}

	t.Run("visits endpoint lists recorded visits", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/links/tracked/visits")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Visits []*model.VisitResponse `json:"visits"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Len(t, out.Visits, 3)
		assert.Equal(t, "203.0.113.7", out.Visits[0].IPAddress)
		assert.Equal(t, "desktop", out.Visits[0].DeviceType)
		assert.Equal(t, "chrome", out.Visits[0].Browser)
	})

	t.Run("stats endpoint aggregates visits", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/links/tracked/stats")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var stats model.LinkStatsResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
		assert.Equal(t, int64(3), stats.TotalVisits)
		assert.Equal(t, int64(3), stats.Devices["desktop"])
		assert.Equal(t, int64(3), stats.Browsers["chrome"])
		assert.NotEmpty(t, stats.LastVisitAt)
	})
}

// TestMetricsEndpoint verifies the Prometheus scrape surface
func TestMetricsEndpoint(t *testing.T) {
	ctx := context.Background()
	testDB.Cleanup(ctx)
	testCache.Cleanup(ctx)
	srv, baseURL := setupTestServer(t)
	defer srv.Shutdown(ctx)

	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
