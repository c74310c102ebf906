package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestParseTag(t *testing.T) {
	tag, err := ParseTag("pt_br")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tag.String() != "pt-BR" {
		t.Fatalf("normalized tag %s", tag)
	}
	if _, err := ParseTag("not a language!"); err == nil {
		t.Fatalf("expected invalid tag error")
	}
	if _, err := ParseTag(""); err == nil {
		t.Fatalf("expected empty tag error")
	}
}

func TestFromAcceptLanguage(t *testing.T) {
	tag, ok := FromAcceptLanguage("fr;q=0.5, en-US;q=0.9")
	if !ok || tag.String() != "en-US" {
		t.Fatalf("accept-language %s %v", tag, ok)
	}
	if _, ok := FromAcceptLanguage(""); ok {
		t.Fatalf("empty header should not resolve")
	}
}

func TestSameLanguage(t *testing.T) {
	if !SameLanguage(language.MustParse("ko"), language.MustParse("ko-KR")) {
		t.Fatalf("ko and ko-KR share a base")
	}
	if SameLanguage(language.Korean, language.English) {
		t.Fatalf("ko and en differ")
	}
}

func TestHTTPTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Source != "ko" || req.Target != "en" {
			http.Error(w, "unexpected languages", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(response{TranslatedText: "[en] " + req.Text})
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := tr.Translate(context.Background(), "소리가 작아요", language.Korean, language.English)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "[en] 소리가 작아요" {
		t.Fatalf("unexpected translation %q", out)
	}
}

func TestHTTPTranslateErrors(t *testing.T) {
	if _, err := NewHTTP(" ", time.Second); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	tr, _ := NewHTTP(srv.URL, time.Second)
	if _, err := tr.Translate(context.Background(), "x", language.Korean, language.English); err == nil {
		t.Fatalf("expected error on 429")
	}
}
