package engine_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"

	"campaignline/internal/engine"
)

type fakeTranslator struct {
	calls int
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, text string, source, target language.Tag) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "[" + source.String() + "->" + target.String() + "] " + text, nil
}

func TestListRevisionsTranslatesOnRead(t *testing.T) {
	env := newTestEnv(t)
	c := env.campaign(t, engine.CampaignCreateOptions{})
	app := env.selected(t, c)
	env.upload(t, app.ID, 0)
	if _, err := env.Engine.RequestRevision(env.Ctx, admin, app.ID, 0, "자막을 빼주세요", ""); err != nil {
		t.Fatalf("request revision: %v", err)
	}
	env.upload(t, app.ID, 0)
	if _, err := env.Engine.RequestRevision(env.Ctx, admin, app.ID, 0, "밝기를 올려주세요", "Please brighten it"); err != nil {
		t.Fatalf("request revision: %v", err)
	}

	tr := &fakeTranslator{}
	env.Engine.Translator = tr
	entries, err := env.Engine.ListRevisions(env.Ctx, creator, app.ID, "en-us")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CommentTranslated != "[ko->en-US] 자막을 빼주세요" {
		t.Fatalf("translation not attached: %q", entries[0].CommentTranslated)
	}
	if entries[1].CommentTranslated != "Please brighten it" || tr.calls != 1 {
		t.Fatalf("stored translation should be kept: %q calls=%d", entries[1].CommentTranslated, tr.calls)
	}

	stored, _ := env.Engine.Repo.ListRevisionRequests(env.Ctx, app.ID)
	if stored[0].CommentTranslated != "" {
		t.Fatalf("translation persisted: %q", stored[0].CommentTranslated)
	}

	entries, err = env.Engine.ListRevisions(env.Ctx, creator, app.ID, "ko-KR")
	if err != nil || tr.calls != 1 || entries[0].CommentTranslated != "" {
		t.Fatalf("same-language request should skip translation: %v calls=%d", err, tr.calls)
	}

	env.Engine.Translator = &fakeTranslator{err: errors.New("quota exceeded")}
	entries, err = env.Engine.ListRevisions(env.Ctx, creator, app.ID, "en")
	if err != nil {
		t.Fatalf("translator failure should not fail the read: %v", err)
	}
	if entries[0].Comment != "자막을 빼주세요" || entries[0].CommentTranslated != "" {
		t.Fatalf("original not returned: %+v", entries[0])
	}

	_, err = env.Engine.ListRevisions(env.Ctx, creator, app.ID, "!!")
	expectValidation(t, err, "lang")
}
