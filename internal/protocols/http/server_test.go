package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyhub/internal/core"
	"storyhub/internal/gateway"
	"storyhub/internal/repository"
	"storyhub/pkg/config"
	"storyhub/pkg/database"
	"storyhub/pkg/models"
)

const testStories = `[
	{"id":"s_1","title":"Summer","translator":"Kuma","genres":["Cute","SFW"],"status":"ongoing","stats":{"views":10}},
	{"id":"s_2","title":"Night Shift","genres":["Bara","NSFW"],"status":"completed","stats":{"views":30}},
	{"id":"s_3","title":"Hidden Gem","genres":["Cute"],"isHidden":true,"stats":{"views":99}}
]`

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type testEnv struct {
	server  *Server
	gw      *gateway.Local
	catalog *core.Catalog

	adminToken      string
	translatorToken string
	userToken       string
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    T      `json:"data"`
}

func newTestEnv(t *testing.T, rps float64, burst int) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	docs, err := repository.NewFileStore(filepath.Join(dir, "data"))
	require.NoError(t, err)
	blobs := repository.NewLocalBlobStore(dir, "")
	gw := gateway.NewLocal(docs, blobs)
	_, err = gw.Replace(ctx, models.DocStories, []byte(testStories), "")
	require.NoError(t, err)

	catalog := core.NewCatalog(gw)
	require.NoError(t, catalog.Load(ctx))
	coord := core.NewCoordinator(gw, catalog, nil, core.CoordinatorOptions{})

	db, err := database.Open(database.Config{Driver: database.DriverSQLite, Path: filepath.Join(dir, "users.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))
	auth := core.NewAuthService(repository.NewSQLUserRepository(db), core.AuthOptions{JWTSecret: "test-secret", JWTExpiry: time.Hour})
	require.NoError(t, auth.EnsureBootstrapAdmin(ctx, "admin-pass"))

	admin, err := auth.Login(ctx, models.LoginRequest{LoginID: models.BootstrapAdminName, Password: "admin-pass"})
	require.NoError(t, err)
	translator, err := auth.Signup(ctx, models.SignupRequest{Name: "Kuma", Email: "kuma@example.com", Password: "secret123", IsTranslator: true})
	require.NoError(t, err)
	reader, err := auth.Signup(ctx, models.SignupRequest{Name: "Neko", Email: "neko@example.com", Password: "secret123"})
	require.NoError(t, err)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test", MaxUploadBytes: 10 << 20},
		Storage:   config.StorageConfig{UploadDir: dir},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: rps, Burst: burst},
	}
	srv := NewServer(cfg, Services{
		Gateway:   gw,
		Catalog:   catalog,
		Coord:     coord,
		Projector: core.NewProjector(models.NewTaxonomy([]string{"NSFW", "18+"}), time.Now),
		Auth:      auth,
		Comments:  core.NewCommentService(gw, catalog, nil),
		Publish: core.NewPublishService(catalog, coord,
			map[core.Transport]repository.BlobStore{core.TransportServer: blobs},
			core.PublishOptions{Attempts: 1}),
	})

	return &testEnv{
		server:          srv,
		gw:              gw,
		catalog:         catalog,
		adminToken:      admin.Token,
		translatorToken: translator.Token,
		userToken:       reader.Token,
	}
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(values url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api.php", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, token)
}

func (e *testEnv) doJSON(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func storyIDs(cards []models.StoryCard) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

func TestDocumentReadWithETag(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.do(httptest.NewRequest(http.MethodGet, "/stories.json", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.JSONEq(t, testStories, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/stories.json", nil)
	req.Header.Set("If-None-Match", etag)
	w = env.do(req, "")
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/guide.json", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveDataAuthorization(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	genres := url.Values{"action": {"save_data"}, "type": {"genres"}, "content": {`["Cute","Bara"]`}}

	assert.Equal(t, http.StatusUnauthorized, env.postForm(genres, "").Code)
	assert.Equal(t, http.StatusForbidden, env.postForm(genres, env.translatorToken).Code)

	stories := url.Values{"action": {"save_data"}, "type": {"stories"}, "content": {`[]`}}
	assert.Equal(t, http.StatusForbidden, env.postForm(stories, env.userToken).Code)

	w := env.postForm(genres, env.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode[models.GatewayResponse](t, w)
	assert.True(t, reply.Success)
	assert.Equal(t, "Saved genres.json", reply.Message)
	assert.NotEmpty(t, reply.Revision)
	assert.Equal(t, []string{"Cute", "Bara"}, env.catalog.Genres())
}

func TestSaveDataRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	cases := []struct {
		name   string
		values url.Values
		status int
	}{
		{"missing content", url.Values{"action": {"save_data"}, "type": {"genres"}}, http.StatusBadRequest},
		{"unknown type", url.Values{"action": {"save_data"}, "type": {"users"}, "content": {"[]"}}, http.StatusBadRequest},
		{"malformed json", url.Values{"action": {"save_data"}, "type": {"genres"}, "content": {`["Cute"`}}, http.StatusBadRequest},
		{"comments are append only", url.Values{"action": {"save_data"}, "type": {"comments"}, "content": {"[]"}}, http.StatusBadRequest},
		{"stale revision", url.Values{"action": {"save_data"}, "type": {"genres"}, "content": {`["Cute"]`}, "revision": {"0000"}}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.postForm(tc.values, env.adminToken)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			reply := decode[models.GatewayResponse](t, w)
			assert.False(t, reply.Success)
			assert.NotEmpty(t, reply.Message)
		})
	}
}

func TestIncrementViewAction(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	for i := 0; i < 2; i++ {
		w := env.postForm(url.Values{"action": {"increment_view"}, "id": {"s_1"}}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	story, found := env.catalog.Story("s_1")
	require.True(t, found)
	assert.Equal(t, 12, story.Stats.Views)

	w := env.postForm(url.Values{"action": {"increment_view"}, "id": {"s_404"}}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommentActions(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.postForm(url.Values{"action": {"add_comment"}, "comment": {`{"storyId":"s_1","content":"first!"}`}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.postForm(url.Values{"action": {"add_comment"}, "comment": {`{"storyId":"s_1","content":"lovely","userName":"Spoofed"}`}}, env.userToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api.php?action=get_comments", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Success bool             `json:"success"`
		Data    []models.Comment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, "Neko", list.Data[0].UserName, "author comes from the token")
	assert.Equal(t, models.GuestUserName, list.Data[1].UserName)

	w = env.postForm(url.Values{"action": {"add_comment"}, "comment": {`not json`}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.postForm(url.Values{"action": {"add_comment"}, "comment": {`{"storyId":"s_404","content":"hi"}`}}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginAction(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.postForm(url.Values{"action": {"login"}, "loginId": {"kuma@example.com"}, "password": {"secret123"}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode[models.GatewayResponse](t, w)
	assert.NotEmpty(t, reply.Token)
	require.NotNil(t, reply.User)
	assert.Equal(t, models.UserRoleTranslator, reply.User.Role)

	w = env.postForm(url.Values{"action": {"login"}, "loginId": {"Kuma"}, "password": {"nope"}}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.postForm(url.Values{"action": {"launch_rockets"}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid Action", decode[models.GatewayResponse](t, w).Message)
}

func TestUploadImageAction(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	upload := func(path string, data []byte, token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("action", "upload_image"))
		require.NoError(t, mw.WriteField("path", path))
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api.php", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return env.do(req, token)
	}

	assert.Equal(t, http.StatusForbidden, upload("uploads/s_1/a.png", pngBytes, env.userToken).Code)

	w := upload("uploads/s_1/a.png", pngBytes, env.translatorToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "uploads/s_1/a.png", decode[models.GatewayResponse](t, w).URL)

	w = env.do(httptest.NewRequest(http.MethodGet, "/uploads/s_1/a.png", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnsupportedMediaType, upload("uploads/s_1/b.png", []byte("plain text"), env.translatorToken).Code)
	assert.Equal(t, http.StatusBadRequest, upload("../etc/passwd.png", pngBytes, env.translatorToken).Code)
}

func TestHomeProjection(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.doJSON(http.MethodGet, "/api/v1/home", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	home := decode[envelope[models.HomePage]](t, w)
	assert.Equal(t, []string{"s_1"}, storyIDs(home.Data.Stories))
	assert.Equal(t, models.DefaultGenres(), home.Data.Genres)

	w = env.doJSON(http.MethodGet, "/api/v1/home?nsfw=true", nil, "")
	home = decode[envelope[models.HomePage]](t, w)
	assert.Equal(t, []string{"s_1", "s_2"}, storyIDs(home.Data.Stories))

	w = env.doJSON(http.MethodGet, "/api/v1/home?nsfw=true&q=night", nil, "")
	home = decode[envelope[models.HomePage]](t, w)
	assert.Equal(t, []string{"s_2"}, storyIDs(home.Data.Stories))
}

func TestRankingsAndGenre(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.doJSON(http.MethodGet, "/api/v1/rankings?nsfw=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	ranked := decode[envelope[models.PaginatedResponse[models.StoryCard]]](t, w)
	assert.Equal(t, []string{"s_2", "s_1"}, storyIDs(ranked.Data.Data))
	assert.True(t, ranked.Data.Data[0].Sensitive)

	w = env.doJSON(http.MethodGet, "/api/v1/genres/cute", nil, "")
	genre := decode[envelope[models.PaginatedResponse[models.StoryCard]]](t, w)
	assert.Equal(t, []string{"s_1"}, storyIDs(genre.Data.Data), "hidden stories stay out of genre lists")
}

func TestStoryDetailHidesHiddenStories(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, "/api/v1/stories/s_3", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, "/api/v1/stories/s_3", nil, env.userToken).Code)
	assert.Equal(t, http.StatusOK, env.doJSON(http.MethodGet, "/api/v1/stories/s_3", nil, env.adminToken).Code)
	assert.Equal(t, http.StatusOK, env.doJSON(http.MethodGet, "/api/v1/stories/s_1", nil, "").Code)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	assert.Equal(t, http.StatusUnauthorized, env.doJSON(http.MethodPost, "/api/v1/admin/stories/s_1/visibility", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, env.doJSON(http.MethodPost, "/api/v1/admin/stories/s_1/visibility", nil, env.translatorToken).Code)

	w := env.doJSON(http.MethodPost, "/api/v1/admin/stories/s_1/visibility", nil, env.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	toggled := decode[envelope[map[string]bool]](t, w)
	assert.True(t, toggled.Data["isHidden"])

	home := decode[envelope[models.HomePage]](t, env.doJSON(http.MethodGet, "/api/v1/home", nil, ""))
	assert.Empty(t, home.Data.Stories)

	w = env.doJSON(http.MethodPost, "/api/v1/admin/genres", map[string]string{"name": "Slice of Life"}, env.adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, env.catalog.Genres(), "Slice of Life")
	w = env.doJSON(http.MethodPost, "/api/v1/admin/genres", map[string]string{"name": "slice of life"}, env.adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code, "duplicate genre")

	w = env.doJSON(http.MethodDelete, "/api/v1/admin/stories/s_404", nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(http.MethodPut, "/api/v1/admin/announcement", map[string]interface{}{"message": "Maintenance tonight", "isShow": true}, env.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	home = decode[envelope[models.HomePage]](t, env.doJSON(http.MethodGet, "/api/v1/home", nil, ""))
	require.NotNil(t, home.Data.Announcement)
	assert.Equal(t, "Maintenance tonight", home.Data.Announcement.Message)
}

func TestOwnerCanDeleteOwnStory(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	assert.Equal(t, http.StatusForbidden, env.doJSON(http.MethodDelete, "/api/v1/me/stories/s_2", nil, env.translatorToken).Code)

	w := env.doJSON(http.MethodDelete, "/api/v1/me/stories/s_1", nil, env.translatorToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, found := env.catalog.Story("s_1")
	assert.False(t, found)
}

func TestPublishLinkTransport(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	form := func(token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fields := map[string]string{
			"mode":         "new",
			"transport":    "link",
			"title":        "Autumn Leaves",
			"genres":       "Cute, SFW",
			"coverUrl":     "https://img.example.com/cover.jpg",
			"chapterTitle": "Prologue",
			"pageUrls":     "https://img.example.com/1.jpg\nhttps://img.example.com/2.jpg",
		}
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/publish", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return env.do(req, token)
	}

	assert.Equal(t, http.StatusForbidden, form(env.userToken).Code)

	w := form(env.translatorToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode[envelope[core.PublishResult]](t, w)
	assert.Equal(t, "Autumn Leaves", result.Data.Story.Title)
	assert.Equal(t, []string{"Cute", "SFW"}, result.Data.Story.Genres)
	assert.Len(t, result.Data.Chapter.Images, 2)

	stories := env.catalog.Stories()
	require.NotEmpty(t, stories)
	assert.Equal(t, result.Data.Story.ID, stories[0].ID, "new stories are prepended")
}

func TestRateLimitedLogin(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	login := url.Values{"action": {"login"}, "loginId": {"Kuma"}, "password": {"secret123"}}
	assert.Equal(t, http.StatusOK, env.postForm(login, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, env.postForm(login, "").Code)

	// reads are never throttled
	assert.Equal(t, http.StatusOK, env.doJSON(http.MethodGet, "/api/v1/home", nil, "").Code)
}
