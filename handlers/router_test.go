package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/camden-git/photogallery/auth"
	"github.com/camden-git/photogallery/config"
	"github.com/camden-git/photogallery/events"
	"github.com/camden-git/photogallery/logging"
	"github.com/camden-git/photogallery/media"
	"github.com/camden-git/photogallery/models"
	"github.com/camden-git/photogallery/realtime"
	"github.com/camden-git/photogallery/repository"
	"github.com/camden-git/photogallery/services"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "let-me-in"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	handler http.Handler
	repo    *repository.PhotoRepository
	blobs   *media.LocalStorage
	clock   *testClock
	hub     *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Auth.AdminPasswordHash = string(hash)
	cfg.Auth.SessionSecret = strings.Repeat("s", 32)
	cfg.Upload.MaxBytes = 64 << 10
	require.NoError(t, cfg.Validate())

	gate, err := auth.NewGate(cfg.Auth)
	require.NoError(t, err)

	kv, err := repository.NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	blobs, err := media.NewLocalStorage(t.TempDir(), logging.Discard())
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	repo := repository.NewPhotoRepository(kv)
	hub := realtime.NewHub(logging.Discard(), cfg.CORS.AllowedOrigins)
	t.Cleanup(func() { _ = hub.Close() })
	svc := services.NewPhotoService(repo, blobs, logging.Discard(),
		services.WithClock(clock.Now),
		services.WithPublisher(hub),
	)

	return &testServer{
		handler: NewRouter(cfg, logging.Discard(), gate, svc, hub),
		repo:    repo,
		blobs:   blobs,
		clock:   clock,
		hub:     hub,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := ts.do(loginRequest(testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func (ts *testServer) upload(t *testing.T, session *http.Cookie, fileName string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := uploadRequest(t, fileName, "image/jpeg", content, fields)
	if session != nil {
		req.AddCookie(session)
	}
	return ts.do(req)
}

func (ts *testServer) storedState(t *testing.T) (int, int) {
	t.Helper()
	ids, err := ts.repo.IDs(context.Background())
	require.NoError(t, err)
	objects, err := ts.blobs.List(context.Background(), "")
	require.NoError(t, err)
	return len(ids), len(objects)
}

func loginRequest(password string) *http.Request {
	form := url.Values{"password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, fileName, contentType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jpeg(n int) []byte {
	content := bytes.Repeat([]byte{0x11}, n)
	copy(content, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return content
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type uploadBody struct {
	Success  bool         `json:"success"`
	PhotoID  string       `json:"photoId"`
	Metadata models.Photo `json:"metadata"`
}

func TestScenario_UploadSunsetThenList(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)

	rec := ts.upload(t, session, "sunset.jpg", jpeg(100), map[string]string{"title": "Sunset"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[uploadBody](t, rec)
	assert.True(t, first.Success)
	assert.NotEmpty(t, first.PhotoID)
	assert.Equal(t, first.PhotoID, first.Metadata.ID)
	assert.Equal(t, "Sunset", first.Metadata.Title)
	assert.Equal(t, int64(100), first.Metadata.Size)
	assert.Equal(t, "image/jpeg", first.Metadata.MimeType)
	assert.Equal(t, first.PhotoID+".jpg", first.Metadata.FileName)

	ts.clock.Advance(time.Second)
	rec = ts.upload(t, session, "later.png", jpeg(20), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[uploadBody](t, rec)
	assert.Equal(t, "later.png", second.Metadata.Title)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]models.Photo](t, rec)
	require.Len(t, listed, 2)
	assert.Equal(t, second.PhotoID, listed[0].ID, "newest first")
	assert.Equal(t, first.PhotoID, listed[1].ID)
}

func TestListPhotos_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUnauthorizedMutationsLeaveStoresUntouched(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)
	rec := ts.upload(t, session, "a.jpg", jpeg(10), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	photo := decode[uploadBody](t, rec).Metadata

	records, blobs := ts.storedState(t)
	forged := &http.Cookie{Name: auth.SessionCookieName, Value: "admin"}

	for _, cookie := range []*http.Cookie{nil, forged} {
		requests := []*http.Request{
			uploadRequest(t, "b.jpg", "image/jpeg", jpeg(10), nil),
			httptest.NewRequest(http.MethodPut, "/api/photos/"+photo.ID, strings.NewReader(`{"title":"hacked"}`)),
			httptest.NewRequest(http.MethodDelete, "/api/photos/"+photo.ID, nil),
		}
		for _, req := range requests {
			if cookie != nil {
				req.AddCookie(cookie)
			}
			rec := ts.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.Method, req.URL.Path)
			assert.Equal(t, "Unauthorized", decode[APIErrorResponse](t, rec).Error)
		}
	}

	gotRecords, gotBlobs := ts.storedState(t)
	assert.Equal(t, records, gotRecords)
	assert.Equal(t, blobs, gotBlobs)

	stored, err := ts.repo.Get(context.Background(), photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", stored.Title)
}

func TestUploadPhoto_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)

	rec := ts.upload(t, session, "", nil, map[string]string{"title": "no file"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decode[APIErrorResponse](t, rec).Error)

	rec = ts.upload(t, session, "empty.jpg", []byte{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(session)
	rec = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.upload(t, session, "long.jpg", jpeg(10), map[string]string{"title": strings.Repeat("t", 300)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[APIErrorResponse](t, rec).Code)

	records, blobs := ts.storedState(t)
	assert.Zero(t, records)
	assert.Zero(t, blobs)
}

func TestUploadPhoto_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)

	rec := ts.upload(t, session, "huge.jpg", jpeg(128<<10), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decode[APIErrorResponse](t, rec).Code)
}

func TestUpdatePhoto(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)
	rec := ts.upload(t, session, "a.jpg", jpeg(10), map[string]string{"description": "before"})
	require.Equal(t, http.StatusCreated, rec.Code)
	photo := decode[uploadBody](t, rec).Metadata

	put := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/photos/"+id, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(session)
		return ts.do(req)
	}

	rec = put(photo.ID, `{"title":"Renamed","size":1,"fileName":"evil.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Success  bool         `json:"success"`
		Metadata models.Photo `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Success)
	assert.Equal(t, "Renamed", updated.Metadata.Title)
	assert.Equal(t, "before", updated.Metadata.Description)
	assert.Equal(t, photo.FileName, updated.Metadata.FileName, "unknown and immutable fields are ignored")
	assert.Equal(t, photo.Size, updated.Metadata.Size)
	require.NotNil(t, updated.Metadata.UpdatedAt)

	rec = put("does-not-exist", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIErrorResponse](t, rec).Code)

	rec = put(photo.ID, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = put(photo.ID, `{"title":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePhoto(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)
	rec := ts.upload(t, session, "a.jpg", jpeg(10), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	photo := decode[uploadBody](t, rec).Metadata

	del := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/photos/"+photo.ID, nil)
		req.AddCookie(session)
		return ts.do(req)
	}

	rec = del()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/originals/"+photo.FileName, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = del()
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImages(t *testing.T) {
	ts := newTestServer(t)
	session := ts.login(t)
	content := jpeg(64)
	rec := ts.upload(t, session, "a.jpg", content, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	photo := decode[uploadBody](t, rec).Metadata

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/originals/"+photo.FileName, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "64", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get(media.HeaderImageFit))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/originals/"+photo.FileName+"?size=thumbnail", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes(), "the original bytes are served for every variant")
	assert.Equal(t, "cover", rec.Header().Get(media.HeaderImageFit))
	assert.Equal(t, "300", rec.Header().Get(media.HeaderImageWidth))
	assert.Equal(t, "300", rec.Header().Get(media.HeaderImageHeight))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/originals/"+photo.FileName+"?size=medium", nil))
	assert.Equal(t, "scale-down", rec.Header().Get(media.HeaderImageFit))
	assert.Equal(t, "800", rec.Header().Get(media.HeaderImageWidth))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/originals/"+photo.FileName+"?size=gigantic", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(media.HeaderImageFit))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/thumbnails/"+photo.FileName, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cover", rec.Header().Get(media.HeaderImageFit))

	rec = ts.do(httptest.NewRequest(http.MethodHead, "/images/originals/"+photo.FileName, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "64", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())

	req := httptest.NewRequest(http.MethodGet, "/images/originals/"+photo.FileName, nil)
	req.Header.Set("If-None-Match", etag)
	rec = ts.do(req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/images/originals/missing.jpg?size=thumbnail", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginAndLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(loginRequest("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", decode[APIErrorResponse](t, rec).Error)
	assert.Empty(t, rec.Result().Cookies())

	rec = ts.do(loginRequest(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(loginRequest(testPassword))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	setCookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "Secure")
	assert.Contains(t, setCookie, "SameSite=Strict")
	assert.Contains(t, setCookie, "Max-Age=86400")

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestLogin_MultipartForm(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("password", testPassword))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/login", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminPage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(ts.login(t))
	rec = ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Gallery Admin")
}

func TestPublicPages(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/", "/index.html", "/admin/login"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"), path)
		assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>", path)
	}
}

func TestPublicPages_Gzip(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestRouting_NotFoundAndCORS(t *testing.T) {
	ts := newTestServer(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/nope", nil),
		httptest.NewRequest(http.MethodGet, "/api/unknown", nil),
		httptest.NewRequest(http.MethodPatch, "/api/photos", nil),
	} {
		rec := ts.do(req)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", req.Method, req.URL.Path)
		assert.Equal(t, "Not Found", rec.Body.String())
	}

	rec := ts.do(httptest.NewRequest(http.MethodOptions, "/api/photos/some-id", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), "set without an Origin header too")

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/photos", nil)
	preflight.Header.Set("Origin", "https://example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec = ts.do(preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	get := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
	get.Header.Set("Origin", "https://example.com")
	rec = ts.do(get)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverer(t *testing.T) {
	handler := Recoverer(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("metadata store exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[APIErrorResponse](t, rec)
	assert.Equal(t, "metadata store exploded", body.Error)
	assert.Equal(t, "UNEXPECTED_ERROR", body.Code)
}

func TestLiveEvents(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.handler)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	rec := ts.upload(t, ts.login(t), "live.jpg", jpeg(10), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	photo := decode[uploadBody](t, rec).Metadata

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event events.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, events.TypePhotoUploaded, event.Type)
	assert.Equal(t, photo.ID, event.PhotoID)
	require.NotNil(t, event.Photo)
	assert.Equal(t, "live.jpg", event.Photo.Title)
}
