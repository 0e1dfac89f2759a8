package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"github.com/tendant/simple-site/pkg/sitecontent/api"
	"github.com/tendant/simple-site/pkg/sitecontent/auth"
	"github.com/tendant/simple-site/pkg/sitecontent/imaging"
	"github.com/tendant/simple-site/pkg/sitecontent/repo/memory"
	memorystorage "github.com/tendant/simple-site/pkg/sitecontent/storage/memory"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler http.Handler
	store   *memorystorage.Backend
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts api.Options, svcOpts ...sitecontent.Option) *testServer {
	t.Helper()

	issuer, err := auth.NewJWTIssuer("api-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	store := memorystorage.New()
	options := append([]sitecontent.Option{
		sitecontent.WithRepository(memory.New()),
		sitecontent.WithBlobStore(store),
		sitecontent.WithTransformer(imaging.New()),
		sitecontent.WithPasswordHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		sitecontent.WithTokenIssuer(issuer),
		sitecontent.WithLogger(quietLogger()),
	}, svcOpts...)
	svc, err := sitecontent.New(options...)
	require.NoError(t, err)

	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return &testServer{handler: api.NewServer(svc, opts).Routes(), store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	return ts.do(t, method, path, token, reader, "application/json")
}

func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	rr := ts.doJSON(t, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

func (ts *testServer) createWebsite(t *testing.T, token, name string) string {
	t.Helper()
	rr := ts.doJSON(t, "POST", "/api/websites", token, map[string]string{"name": name, "about": "About " + name})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[map[string]interface{}](t, rr)["id"].(string)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	return decode[api.ErrorResponse](t, rr)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// multipartBody builds a form with the given text fields and, when image is
// non-nil, an "image" file part
func multipartBody(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, token, websiteID, kind string, fields map[string]string) map[string]interface{} {
	t.Helper()
	body, contentType := multipartBody(t, fields, pngBytes(t, 40, 20))
	rr := ts.do(t, "POST", "/api/websites/"+websiteID+"/"+kind, token, body, contentType)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[map[string]interface{}](t, rr)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, api.Options{})

	rr := ts.do(t, "GET", "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decode[api.HealthResponse](t, rr)
	assert.Equal(t, "OK", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "same-origin", rr.Header().Get("Cross-Origin-Resource-Policy"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestNotFoundRoute(t *testing.T) {
	ts := newTestServer(t, api.Options{})

	rr := ts.do(t, "GET", "/api/nothing-here", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "route not found", errorOf(t, rr).Error)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, api.Options{})
	token := ts.register(t, "alice")

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/auth/register", "", map[string]string{
			"username": "alice2", "email": "ALICE@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, sitecontent.ErrConflict.Error(), errorOf(t, rr).Error)
	})

	t.Run("invalid registration", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/auth/register", "", map[string]string{
			"username": "bo", "email": "bo@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		details, ok := errorOf(t, rr).Details.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "username", details["field"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := ts.do(t, "POST", "/api/auth/login", "", strings.NewReader("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/auth/login", "", map[string]string{"email": "Alice@Example.com", "password": "password123"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		session := decode[map[string]interface{}](t, rr)
		assert.NotEmpty(t, session["token"])
		assert.NotEmpty(t, session["expires_at"])
		user := session["user"].(map[string]interface{})
		assert.Equal(t, "alice", user["username"])
		assert.NotContains(t, user, "password_hash")
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "invalid credentials", errorOf(t, rr).Error)
	})

	t.Run("me", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/auth/me", token, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		user := decode[map[string]map[string]interface{}](t, rr)["user"]
		assert.Equal(t, "alice@example.com", user["email"])
	})

	t.Run("me without token", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/auth/me", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "access token required", errorOf(t, rr).Error)
	})

	t.Run("me with bad token", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/auth/me", "not-a-token", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "invalid or expired token", errorOf(t, rr).Error)
	})
}

func TestWebsiteRoutes(t *testing.T) {
	ts := newTestServer(t, api.Options{})
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bobby")

	siteID := ts.createWebsite(t, alice, "Alice Site")

	t.Run("missing fields", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/websites", alice, map[string]string{"name": "Only Name"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate name", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/websites", bob, map[string]string{"name": "Alice Site", "about": "copy"})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("requires auth", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/websites", "", map[string]string{"name": "x", "about": "y"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("owner gets details", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/websites/"+siteID, alice, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		details := decode[map[string]interface{}](t, rr)
		assert.Equal(t, "Alice Site", details["name"])
		assert.Contains(t, details, "media")
		assert.Contains(t, details, "carousel")
	})

	t.Run("non-owner and unknown look the same", func(t *testing.T) {
		foreign := ts.do(t, "GET", "/api/websites/"+siteID, bob, nil, "")
		missing := ts.do(t, "GET", "/api/websites/"+uuid.NewString(), bob, nil, "")
		malformed := ts.do(t, "GET", "/api/websites/not-a-uuid", bob, nil, "")

		assert.Equal(t, http.StatusNotFound, foreign.Code)
		assert.Equal(t, http.StatusNotFound, missing.Code)
		assert.Equal(t, http.StatusNotFound, malformed.Code)
		assert.Equal(t, foreign.Body.String(), missing.Body.String())
	})

	t.Run("non-owner cannot update or delete", func(t *testing.T) {
		rr := ts.doJSON(t, "PUT", "/api/websites/"+siteID, bob, map[string]string{"about": "hijacked"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
		rr = ts.do(t, "DELETE", "/api/websites/"+siteID, bob, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("update merges", func(t *testing.T) {
		rr := ts.doJSON(t, "PUT", "/api/websites/"+siteID, alice, map[string]string{"about": "Updated"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		site := decode[map[string]interface{}](t, rr)
		assert.Equal(t, "Alice Site", site["name"])
		assert.Equal(t, "Updated", site["about"])
	})

	t.Run("list", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/websites", alice, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		sites := decode[[]map[string]interface{}](t, rr)
		require.Len(t, sites, 1)
		assert.Equal(t, float64(0), sites[0]["media_count"])

		rr = ts.do(t, "GET", "/api/websites", bob, nil, "")
		assert.Len(t, decode[[]map[string]interface{}](t, rr), 0)
	})

	t.Run("delete", func(t *testing.T) {
		rr := ts.do(t, "DELETE", "/api/websites/"+siteID, alice, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		rr = ts.do(t, "GET", "/api/websites/"+siteID, alice, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestChildRoutes(t *testing.T) {
	ts := newTestServer(t, api.Options{})
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bobby")
	siteID := ts.createWebsite(t, alice, "Gallery")

	media := ts.upload(t, alice, siteID, "media", nil)
	assert.Equal(t, "media", media["kind"])
	assert.Equal(t, float64(40), media["width"])
	assert.Equal(t, "photo.png", media["file_name"])
	mediaURL := media["url"].(string)
	assert.True(t, strings.HasPrefix(mediaURL, "/uploads/"), mediaURL)

	first := ts.upload(t, alice, siteID, "carousel", map[string]string{"title": "First", "subtitle": "one"})
	second := ts.upload(t, alice, siteID, "carousel", map[string]string{"title": "Second"})
	hidden := ts.upload(t, alice, siteID, "carousel", map[string]string{"title": "Hidden", "active": "false"})
	assert.Equal(t, float64(1), first["order"])
	assert.Equal(t, float64(2), second["order"])

	t.Run("uploads are served", func(t *testing.T) {
		rr := ts.do(t, "GET", mediaURL, "", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
		assert.Equal(t, "cross-origin", rr.Header().Get("Cross-Origin-Resource-Policy"))
		assert.NotZero(t, rr.Body.Len())

		rr = ts.do(t, "GET", "/uploads/media/missing.jpg", "", nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("public list hides inactive and private fields", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/websites/"+siteID+"/carousel", "", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		items := decode[[]map[string]interface{}](t, rr)
		require.Len(t, items, 2)
		assert.Equal(t, "First", items[0]["title"])
		assert.Equal(t, "Second", items[1]["title"])
		for _, item := range items {
			assert.NotContains(t, item, "object_key")
			assert.NotContains(t, item, "website_id")
			assert.NotContains(t, item, "active")
		}
	})

	t.Run("public list of unknown website", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/websites/"+uuid.NewString()+"/media", "", nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/websites/"+siteID+"/videos", "", nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("owner list includes everything", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/websites/"+siteID+"/carousel/all", alice, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		items := decode[[]map[string]interface{}](t, rr)
		assert.Len(t, items, 3)

		rr = ts.do(t, "GET", "/api/websites/"+siteID+"/carousel/all", bob, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("get by kind", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/carousel/"+first["id"].(string), alice, nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = ts.do(t, "GET", "/api/media/"+first["id"].(string), alice, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = ts.do(t, "GET", "/api/carousel/"+first["id"].(string), bob, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("json update", func(t *testing.T) {
		rr := ts.doJSON(t, "PUT", "/api/carousel/"+hidden["id"].(string), alice, map[string]interface{}{"active": true, "title": "  Shown  "})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		updated := decode[map[string]interface{}](t, rr)
		assert.Equal(t, "Shown", updated["title"])
		assert.Equal(t, true, updated["active"])
		assert.Equal(t, hidden["object_key"], updated["object_key"])
	})

	t.Run("multipart update replaces image", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, pngBytes(t, 10, 10))
		rr := ts.do(t, "PUT", "/api/media/"+media["id"].(string), alice, body, contentType)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		updated := decode[map[string]interface{}](t, rr)
		assert.NotEqual(t, media["object_key"], updated["object_key"])
		assert.Equal(t, float64(10), updated["width"])

		rr = ts.do(t, "GET", mediaURL, "", nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("media rejects carousel fields", func(t *testing.T) {
		rr := ts.doJSON(t, "PUT", "/api/media/"+media["id"].(string), alice, map[string]string{"title": "nope"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("reorder", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/websites/"+siteID+"/carousel/reorder", alice, []map[string]interface{}{
			{"id": first["id"], "order": 5},
			{"id": second["id"], "order": 0},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = ts.do(t, "GET", "/api/websites/"+siteID+"/carousel", "", nil, "")
		items := decode[[]map[string]interface{}](t, rr)
		require.Len(t, items, 3)
		assert.Equal(t, "Second", items[0]["title"])
		assert.Equal(t, "First", items[2]["title"])
	})

	t.Run("reorder wrapped body", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/websites/"+siteID+"/carousel/reorder", alice, map[string]interface{}{
			"items": []map[string]interface{}{{"id": first["id"], "order": 1}},
		})
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("reorder rejects media and strangers", func(t *testing.T) {
		items := []map[string]interface{}{{"id": first["id"], "order": 1}}
		rr := ts.doJSON(t, "POST", "/api/websites/"+siteID+"/media/reorder", alice, items)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = ts.doJSON(t, "POST", "/api/websites/"+siteID+"/carousel/reorder", bob, items)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		before := ts.store.Len()
		rr := ts.do(t, "DELETE", "/api/carousel/"+second["id"].(string), alice, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, before-1, ts.store.Len())

		rr = ts.do(t, "DELETE", "/api/carousel/"+second["id"].(string), alice, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("activity feed", func(t *testing.T) {
		rr := ts.do(t, "GET", "/api/activity?limit=3", alice, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		entries := decode[[]map[string]interface{}](t, rr)
		require.Len(t, entries, 3)
		assert.Equal(t, "delete_carousel_item", entries[0]["action"])

		rr = ts.do(t, "GET", "/api/activity?limit=abc", alice, nil, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t, api.Options{MaxUploadBytes: 2048}, sitecontent.WithMaxUploadBytes(2048))
	alice := ts.register(t, "alice")
	siteID := ts.createWebsite(t, alice, "Uploads")

	t.Run("missing image", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"title": "No image"}, nil)
		rr := ts.do(t, "POST", "/api/websites/"+siteID+"/carousel", alice, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		rr := ts.doJSON(t, "POST", "/api/websites/"+siteID+"/media", alice, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, bytes.Repeat([]byte{0x89}, 4096))
		rr := ts.do(t, "POST", "/api/websites/"+siteID+"/media", alice, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		details, ok := errorOf(t, rr).Details.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "image", details["field"])
	})

	t.Run("wrong type", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, []byte("GIF89a not really an image"))
		rr := ts.do(t, "POST", "/api/websites/"+siteID+"/media", alice, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad order field", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"title": "x", "order": "first"}, pngBytes(t, 4, 4))
		rr := ts.do(t, "POST", "/api/websites/"+siteID+"/carousel", alice, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	assert.Zero(t, ts.store.Len())
}

func TestRateLimits(t *testing.T) {
	t.Run("global", func(t *testing.T) {
		ts := newTestServer(t, api.Options{RateLimitMax: 2, UploadRateLimitMax: 1})

		for i := 0; i < 2; i++ {
			rr := ts.do(t, "GET", "/api/auth/me", "", nil, "")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "2", rr.Header().Get("RateLimit-Limit"))
		}

		rr := ts.do(t, "GET", "/api/auth/me", "", nil, "")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "0", rr.Header().Get("RateLimit-Remaining"))
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Contains(t, errorOf(t, rr).Error, "Too many requests")

		// health sits outside the limited tree
		rr = ts.do(t, "GET", "/health", "", nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("uploads", func(t *testing.T) {
		ts := newTestServer(t, api.Options{UploadRateLimitMax: 1})
		alice := ts.register(t, "alice")
		siteID := ts.createWebsite(t, alice, "Limited")

		ts.upload(t, alice, siteID, "media", nil)

		body, contentType := multipartBody(t, nil, pngBytes(t, 4, 4))
		rr := ts.do(t, "POST", "/api/websites/"+siteID+"/media", alice, body, contentType)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Contains(t, errorOf(t, rr).Error, "Too many upload requests")

		// other routes still answer
		rr = ts.do(t, "GET", "/api/websites", alice, nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	forwardedFrom := func(ts *testServer, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("X-Forwarded-For", forwarded)
		req.Header.Set("X-Real-IP", forwarded)
		rr := httptest.NewRecorder()
		ts.handler.ServeHTTP(rr, req)
		return rr
	}

	t.Run("forwarded headers do not reset the budget", func(t *testing.T) {
		ts := newTestServer(t, api.Options{RateLimitMax: 2})

		var codes []int
		for i := 0; i < 4; i++ {
			codes = append(codes, forwardedFrom(ts, fmt.Sprintf("203.0.113.%d", i+1)).Code)
		}
		assert.Equal(t, []int{
			http.StatusUnauthorized,
			http.StatusUnauthorized,
			http.StatusTooManyRequests,
			http.StatusTooManyRequests,
		}, codes)
	})

	t.Run("trusted proxy limits per forwarded client", func(t *testing.T) {
		ts := newTestServer(t, api.Options{RateLimitMax: 1, TrustProxy: true})

		assert.Equal(t, http.StatusUnauthorized, forwardedFrom(ts, "203.0.113.1").Code)
		assert.Equal(t, http.StatusTooManyRequests, forwardedFrom(ts, "203.0.113.1").Code)
		assert.Equal(t, http.StatusUnauthorized, forwardedFrom(ts, "203.0.113.2").Code)
	})
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, api.Options{CORSAllowedOrigins: []string{"https://site.example.com"}})

	req := httptest.NewRequest("OPTIONS", "/api/websites", nil)
	req.Header.Set("Origin", "https://site.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, "https://site.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestProductionHeaders(t *testing.T) {
	ts := newTestServer(t, api.Options{Production: true})

	rr := ts.do(t, "GET", "/health", "", nil, "")
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
}
