package campaignlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSendsAuthAndPaths(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Application{ID: "app-1", Status: "filming", Slots: []ApplicationSlot{{Number: 0, State: "filming"}}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "secret"
	app, err := c.RequestRevision(context.Background(), "app-1", 2, "shorter intro", "")
	if err != nil {
		t.Fatalf("request revision: %v", err)
	}
	if gotPath != "/v0/applications/app-1/slots/2/revise" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotBody["comment"] != "shorter intro" {
		t.Fatalf("unexpected body %v", gotBody)
	}
	if _, ok := gotBody["comment_translated"]; ok {
		t.Fatalf("empty translation should be omitted: %v", gotBody)
	}
	if app.ID != "app-1" || app.Slots[0].State != "filming" {
		t.Fatalf("unexpected application %+v", app)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":{"code":"invalid_transition","message":"cannot approve","details":{"from":"filming"}}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "token"
	_, err := c.ApproveVideo(context.Background(), "app-1", 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "invalid_transition" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiErr.Details["from"] != "filming" {
		t.Fatalf("unexpected details %v", apiErr.Details)
	}
}

func TestUploadVideoStreamsBody(t *testing.T) {
	var gotName, gotBody, gotAuth string
	var gotLength int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotName = r.URL.Query().Get("file_name")
		gotAuth = r.Header.Get("Authorization")
		gotLength = r.ContentLength
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UploadResult{Submission: Submission{Version: 1, Track: "video"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "token"
	payload := "fake video bytes"
	res, err := c.UploadVideo(context.Background(), "app-1", 0, "take one.mp4", int64(len(payload)), strings.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotName != "take one.mp4" || gotBody != payload || gotLength != int64(len(payload)) {
		t.Fatalf("unexpected upload name=%q body=%q length=%d", gotName, gotBody, gotLength)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if res.Submission.Version != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitSNSSendsMultipart(t *testing.T) {
	fields := map[string]string{}
	var fileName, fileBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			b, _ := io.ReadAll(part)
			if part.FileName() != "" {
				fileName = part.FileName()
				fileBody = string(b)
				continue
			}
			fields[part.FormName()] = string(b)
		}
		_ = json.NewEncoder(w).Encode(Application{ID: "app-1", Status: "sns_uploaded"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	app, err := c.SubmitSNS(context.Background(), "app-1", 1, SNSPost{
		URL:             "https://instagram.com/p/abc",
		PartnershipCode: "AD-123",
		CleanVideoName:  "clean.mp4",
		CleanVideo:      strings.NewReader("clean bytes"),
	})
	if err != nil {
		t.Fatalf("submit sns: %v", err)
	}
	if fields["sns_url"] != "https://instagram.com/p/abc" || fields["partnership_code"] != "AD-123" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fileName != "clean.mp4" || fileBody != "clean bytes" {
		t.Fatalf("unexpected file %q %q", fileName, fileBody)
	}
	if app.Status != "sns_uploaded" {
		t.Fatalf("unexpected status %s", app.Status)
	}
}

func TestEventsPageQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(PaginatedEvents{Items: []Event{{ID: 7, Type: "notification.requested"}}, NextCursor: "7"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	page, err := c.EventsPage(context.Background(), 1, "9")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if gotQuery != "cursor=9&limit=1" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(page.Items) != 1 || page.NextCursor != "7" {
		t.Fatalf("unexpected page %+v", page)
	}
}
