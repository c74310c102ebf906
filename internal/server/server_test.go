package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campaignline/internal/config"
	"campaignline/internal/db"
	"campaignline/internal/domain"
	"campaignline/internal/engine"
	"campaignline/internal/media"
	"campaignline/internal/migrate"
	"campaignline/internal/repo"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	e.Logger = logger
	store := media.NewFSStore(filepath.Join(workspace, "media"), "/media")
	e.Media = store
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true},
		Media:    store.Handler(),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func signToken(secret, actorID, role string) (string, error) {
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: actorID},
		Role:             role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearer(t *testing.T, actorID, role string) map[string]string {
	t.Helper()
	token, err := signToken(testSecret, actorID, role)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return send(t, client, req)
}

func send(t *testing.T, client *http.Client, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func putVideo(t *testing.T, srv *testServer, appID string, slot string, fileName, contentType string, data []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v0/applications/"+appID+"/slots/"+slot+"/video?file_name="+fileName, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return send(t, srv.Client(), req)
}

func postSNS(t *testing.T, srv *testServer, appID, slot string, fields map[string]string, clean []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range []string{"sns_url", "partnership_code"} {
		if v, ok := fields[k]; ok {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	if clean != nil {
		fw, err := mw.CreateFormFile("clean_video", "clean.mp4")
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		fw.Write(clean)
	}
	mw.Close()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v0/applications/"+appID+"/slots/"+slot+"/sns", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return send(t, srv.Client(), req)
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", string(data), err)
	}
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func expectError(t *testing.T, res *http.Response, data []byte, status int, code string) errorEnvelope {
	t.Helper()
	if res.StatusCode != status {
		t.Fatalf("expected status %d, got %d: %s", status, res.StatusCode, string(data))
	}
	env := decode[errorEnvelope](t, data)
	if env.Error.Code != code {
		t.Fatalf("expected code %s, got %s: %s", code, env.Error.Code, string(data))
	}
	return env
}

// seedSelected creates a campaign and a selected application through the API.
func seedSelected(t *testing.T, srv *testServer, campaign map[string]any) (domain.Campaign, domain.Application) {
	t.Helper()
	adminH := bearer(t, "ops-1", "admin")
	creatorH := bearer(t, "creator-1", "creator")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns", campaign, adminH)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create campaign status %d: %s", res.StatusCode, string(data))
	}
	c := decode[domain.Campaign](t, data)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns/"+c.ID+"/applications", map[string]any{"main_channel": "instagram"}, creatorH)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("apply status %d: %s", res.StatusCode, string(data))
	}
	app := decode[domain.Application](t, data)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/approve", nil, adminH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}
	return c, decode[domain.Application](t, data)
}

func TestHealthIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	health := decode[HealthResponse](t, data)
	if health.Status != "ok" || health.SchemaVersion == 0 || health.SchemaVersion != health.LatestSchema {
		t.Fatalf("unexpected health %+v", health)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/campaigns", nil, nil)
	expectError(t, res, data, http.StatusUnauthorized, "unauthorized")
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/campaigns", nil, map[string]string{"Authorization": "Bearer nope"})
	expectError(t, res, data, http.StatusUnauthorized, "invalid_credentials")
}

func TestOpenAPIDocumentsUploads(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, bearer(t, "ops", "admin"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d: %s", res.StatusCode, string(data))
	}
	doc := decode[struct {
		Paths map[string]map[string]struct {
			OperationID string                `json:"operationId"`
			Security    []map[string][]string `json:"security"`
		} `json:"paths"`
	}](t, data)
	if op := doc.Paths["/v0/applications/{id}/slots/{slot}/video"]["put"]; op.OperationID != "upload-video" {
		t.Fatalf("upload route missing from document: %+v", doc.Paths["/v0/applications/{id}/slots/{slot}/video"])
	}
	if op := doc.Paths["/v0/applications/{id}/slots/{slot}/sns"]["post"]; op.OperationID != "submit-sns" || len(op.Security) != 2 {
		t.Fatalf("sns route not documented with auth: %+v", op)
	}
	if op := doc.Paths["/v0/campaigns"]["post"]; len(op.Security) != 2 {
		t.Fatalf("campaign route missing auth requirements: %+v", op)
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	cause := fmt.Errorf("store video: %w", errors.New("open /var/lib/campaignline/blobs/c1/main/v1.mp4: permission denied"))
	se := handleError(cause)
	if se.GetStatus() != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", se.GetStatus())
	}
	data, err := json.Marshal(se)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "/var/lib") || strings.Contains(string(data), "permission denied") {
		t.Fatalf("cause leaked to client: %s", data)
	}
	env := decode[errorEnvelope](t, data)
	if env.Error.Code != "internal_error" || len(env.Error.Details) != 0 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestStandardCampaignOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	adminH := bearer(t, "ops-1", "admin")
	creatorH := bearer(t, "creator-1", "creator")
	_, app := seedSelected(t, srv, map[string]any{
		"title":            "Spring launch",
		"campaign_type":    "standard",
		"reward_amount":    150000,
		"requires_ad_code": true,
		"target_platforms": []string{"instagram"},
	})
	if app.Status != domain.StatusSelected {
		t.Fatalf("expected selected, got %s", app.Status)
	}

	res, data := putVideo(t, srv, app.ID, "0", "take1.mp4", "video/mp4", []byte("frames-v1"), creatorH)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d: %s", res.StatusCode, string(data))
	}
	uploaded := decode[engine.UploadResult](t, data)
	if uploaded.Submission.Version != 1 || uploaded.Application.Status != domain.StatusVideoSubmitted {
		t.Fatalf("unexpected upload result %+v", uploaded)
	}
	mediaRes, blob := doJSON(t, srv.Client(), http.MethodGet, srv.URL+uploaded.Submission.URL, nil, creatorH)
	if mediaRes.StatusCode != http.StatusOK || string(blob) != "frames-v1" {
		t.Fatalf("media fetch status %d body %q", mediaRes.StatusCode, string(blob))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/slots/0/approve", nil, adminH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve video status %d: %s", res.StatusCode, string(data))
	}

	res, data = postSNS(t, srv, app.ID, "0", map[string]string{"sns_url": "https://www.instagram.com/reel/Cabc123/"}, nil, creatorH)
	env := expectError(t, res, data, http.StatusUnprocessableEntity, "validation_failed")
	if env.Error.Details["field"] != "partnership_code" {
		t.Fatalf("expected partnership_code field, got %v", env.Error.Details)
	}

	res, data = postSNS(t, srv, app.ID, "0", map[string]string{
		"sns_url":          "https://www.instagram.com/reel/Cabc123/",
		"partnership_code": "AD-778",
	}, nil, creatorH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sns status %d: %s", res.StatusCode, string(data))
	}
	posted := decode[domain.Application](t, data)
	if posted.Status != domain.StatusSNSUploaded {
		t.Fatalf("expected sns_uploaded, got %s", posted.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/slots/0/finalize", nil, creatorH)
	expectError(t, res, data, http.StatusForbidden, "forbidden")
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/slots/0/finalize", nil, adminH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("finalize status %d: %s", res.StatusCode, string(data))
	}
	if done := decode[domain.Application](t, data); done.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?type=notification.requested", nil, creatorH)
	expectError(t, res, data, http.StatusForbidden, "forbidden")
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?type=notification.requested", nil, adminH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	evts := decode[paginatedEvents](t, data)
	var kinds []string
	for _, evt := range evts.Items {
		kinds = append(kinds, evt.Payload["kind"].(string))
	}
	if strings.Join(kinds, ",") != "completed,approved,selected" {
		t.Fatalf("unexpected notifications %v", kinds)
	}
}

func TestProgressAndRevisionsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	adminH := bearer(t, "ops-1", "admin")
	creatorH := bearer(t, "creator-1", "creator")
	_, app := seedSelected(t, srv, map[string]any{
		"title":         "Four weeks",
		"campaign_type": "four_week_challenge",
		"slots": []map[string]any{
			{"number": 1, "video_deadline": "2026-03-07", "guide_drive_url": "https://drive.example/w1"},
		},
	})

	res, data := putVideo(t, srv, app.ID, "1", "w1.mov", "video/quicktime", []byte("week1"), creatorH)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/slots/1/revise", map[string]any{"comment": "음량이 너무 작아요"}, adminH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("revise status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/applications/"+app.ID+"/revisions", nil, creatorH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("revisions status %d: %s", res.StatusCode, string(data))
	}
	revisions := decode[[]domain.RevisionRequest](t, data)
	if len(revisions) != 1 || revisions[0].Slot != 1 || revisions[0].AuthorID != "ops-1" {
		t.Fatalf("unexpected revisions %+v", revisions)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/applications/"+app.ID+"/progress", nil, creatorH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress status %d: %s", res.StatusCode, string(data))
	}
	var progress struct {
		Status        string `json:"status"`
		RevisionCount int    `json:"revision_count"`
		Slots         []struct {
			Number        int    `json:"number"`
			State         string `json:"state"`
			CanUpload     bool   `json:"can_upload"`
			GuideDriveURL string `json:"guide_drive_url"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(data, &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.RevisionCount != 1 || len(progress.Slots) != 4 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	week1 := progress.Slots[0]
	if week1.State != string(domain.SlotRevisionRequested) || !week1.CanUpload || week1.GuideDriveURL == "" {
		t.Fatalf("unexpected week1 %+v", week1)
	}

	res, data = putVideo(t, srv, app.ID, "1", "w1b.mp4", "video/mp4", []byte("week1-again"), creatorH)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("re-upload status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/applications/"+app.ID+"/submissions?slot=1", nil, creatorH)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submissions status %d: %s", res.StatusCode, string(data))
	}
	subs := decode[[]domain.VideoSubmission](t, data)
	if len(subs) != 2 || subs[0].Version != 1 || subs[1].Version != 2 {
		t.Fatalf("unexpected submissions %+v", subs)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/applications/"+app.ID, nil, bearer(t, "creator-2", "creator"))
	expectError(t, res, data, http.StatusForbidden, "forbidden")
}

func TestRejectedUploadsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	creatorH := bearer(t, "creator-1", "creator")
	_, app := seedSelected(t, srv, map[string]any{"title": "Gate"})

	res, data := putVideo(t, srv, app.ID, "0", "notes.pdf", "application/pdf", []byte("%PDF"), creatorH)
	env := expectError(t, res, data, http.StatusUnprocessableEntity, "validation_failed")
	if env.Error.Details["field"] != "file" {
		t.Fatalf("expected file field, got %v", env.Error.Details)
	}

	res, data = postSNS(t, srv, app.ID, "0", map[string]string{"sns_url": "https://www.instagram.com/reel/Cabc123/"}, nil, creatorH)
	env = expectError(t, res, data, http.StatusUnprocessableEntity, "invalid_transition")
	if env.Error.Details["precondition"] != "no approved video on file" {
		t.Fatalf("unexpected precondition %v", env.Error.Details)
	}

	res, data = putVideo(t, srv, app.ID, "7", "clip.mp4", "video/mp4", []byte("x"), creatorH)
	expectError(t, res, data, http.StatusBadRequest, "bad_request")

	subs, err := srv.Engine.Repo.ListSubmissions(context.Background(), repo.SubmissionFilters{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("rejected uploads must not be recorded, got %d", len(subs))
	}
}

func TestCampaignTypeImmutableOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	adminH := bearer(t, "ops-1", "admin")
	c, _ := seedSelected(t, srv, map[string]any{"title": "Fixed"})
	res, data := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/campaigns/"+c.ID, map[string]any{"campaign_type": "four_week_challenge"}, adminH)
	env := expectError(t, res, data, http.StatusUnprocessableEntity, "validation_failed")
	if env.Error.Details["field"] != "campaign_type" {
		t.Fatalf("unexpected details %v", env.Error.Details)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/campaigns/"+c.ID, map[string]any{"title": "Renamed"}, adminH)
	if res.StatusCode != http.StatusOK || decode[domain.Campaign](t, data).Title != "Renamed" {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns/"+c.ID+"/applications", nil, bearer(t, "creator-1", "creator"))
	expectError(t, res, data, http.StatusConflict, "conflict")
}

func TestAPIKeyAndLegacyHeader(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	adminH := bearer(t, "ops-1", "admin")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/api-keys", map[string]any{"actor_id": "creator-9", "role": "creator"}, adminH)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key status %d: %s", res.StatusCode, string(data))
	}
	created := decode[CreateAPIKeyResponse](t, data)
	if !strings.HasPrefix(created.Key, "cl_") {
		t.Fatalf("unexpected key %q", created.Key)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": created.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	who := decode[WhoAmIResponse](t, data)
	if who.ActorID != "creator-9" || who.Role != "creator" || who.Source != "api_key" {
		t.Fatalf("unexpected principal %+v", who)
	}
	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/api-keys/"+created.ID, nil, adminH)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete key status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": created.Key})
	expectError(t, res, data, http.StatusUnauthorized, "invalid_credentials")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Actor-Id": "ops-2", "X-Role": "admin"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("legacy me status %d: %s", res.StatusCode, string(data))
	}
	if who := decode[WhoAmIResponse](t, data); who.Role != "admin" || who.Source != "legacy_header" {
		t.Fatalf("unexpected legacy principal %+v", who)
	}
}

func TestWebhookDeliversNotifications(t *testing.T) {
	var mu sync.Mutex
	var received []webhookEvent
	var secrets []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, evt)
		secrets = append(secrets, r.Header.Get("X-Campaignline-Secret"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	srv, cleanup := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"notification.requested"}, Secret: "shh"}}
	})
	defer cleanup()
	d := newWebhookDispatcher(srv.Engine, nil)
	if d == nil {
		t.Fatalf("dispatcher not created")
	}
	ctx := context.Background()
	d.dispatchAll(ctx) // pins the cursor at the current head

	seedSelected(t, srv, map[string]any{"title": "Hooked"})
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	var payload map[string]any
	if err := json.Unmarshal(received[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if received[0].Type != "notification.requested" || payload["kind"] != "selected" || payload["user_id"] != "creator-1" {
		t.Fatalf("unexpected delivery %+v %v", received[0], payload)
	}
	if secrets[0] != "shh" {
		t.Fatalf("secret header missing")
	}
}
