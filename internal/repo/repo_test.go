package repo_test

import (
	"context"
	"errors"
	"testing"

	"campaignline/internal/db"
	"campaignline/internal/domain"
	"campaignline/internal/lifecycle"
	"campaignline/internal/migrate"
	"campaignline/internal/repo"
)

const ts = "2026-03-01T09:00:00Z"

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func seed(t *testing.T, r repo.Repo, ctx context.Context) domain.Application {
	t.Helper()
	c := domain.Campaign{
		ID: "camp-1", Title: "Launch", Type: domain.CampaignFourWeekChallenge,
		TargetPlatforms: []string{"instagram"},
		Slots:           []domain.CampaignSlot{{Number: 1, VideoDeadline: "2026-03-07"}, {Number: 2}, {Number: 3}, {Number: 4}},
		CreatedAt:       ts, UpdatedAt: ts,
	}
	app := domain.Application{
		ID: "app-1", CampaignID: c.ID, UserID: "creator-1", Status: domain.StatusPending,
		Slots: lifecycle.NewSlots(c.Type), CreatedAt: ts, UpdatedAt: ts,
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := r.InsertCampaign(ctx, tx, c); err != nil {
		t.Fatalf("insert campaign: %v", err)
	}
	if err := r.InsertApplication(ctx, tx, app); err != nil {
		t.Fatalf("insert application: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return app
}

func TestCampaignRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	seed(t, r, ctx)
	c, err := r.GetCampaign(ctx, "camp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Type != domain.CampaignFourWeekChallenge || len(c.Slots) != 4 || c.Slots[0].VideoDeadline != "2026-03-07" {
		t.Fatalf("campaign %+v", c)
	}
	if len(c.TargetPlatforms) != 1 || c.TargetPlatforms[0] != "instagram" {
		t.Fatalf("platforms %v", c.TargetPlatforms)
	}
	if _, err := r.GetCampaign(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateApplication(t *testing.T) {
	r, ctx := newRepo(t)
	app := seed(t, r, ctx)
	app.ID = "app-2"
	tx, _ := r.DB.BeginTx(ctx, nil)
	defer tx.Rollback()
	if err := r.InsertApplication(ctx, tx, app); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateApplicationOptimistic(t *testing.T) {
	r, ctx := newRepo(t)
	app := seed(t, r, ctx)
	next, err := lifecycle.Approve(app, []int{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	next.CustomDeadlines = map[string]string{"week2_deadline": "2026-03-20"}

	tx, _ := r.DB.BeginTx(ctx, nil)
	if err := r.UpdateApplication(ctx, tx, next, 0); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx, _ = r.DB.BeginTx(ctx, nil)
	defer tx.Rollback()
	if err := r.UpdateApplication(ctx, tx, next, 0); !errors.Is(err, repo.ErrStale) {
		t.Fatalf("expected ErrStale for stale revision, got %v", err)
	}
	missing := next
	missing.ID = "nope"
	if err := r.UpdateApplication(ctx, tx, missing, 0); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := r.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Revision != 1 || got.Status != domain.StatusSelected || got.CustomDeadlines["week2_deadline"] != "2026-03-20" {
		t.Fatalf("stored application %+v", got)
	}
	if got.Slots[2].State != domain.SlotNotAssigned || got.Slots[0].State != domain.SlotSelected {
		t.Fatalf("slot states %+v", got.Slots)
	}
}

func TestSubmissionVersions(t *testing.T) {
	r, ctx := newRepo(t)
	app := seed(t, r, ctx)
	week := 1
	insert := func(id string, version int) error {
		tx, _ := r.DB.BeginTx(ctx, nil)
		defer tx.Rollback()
		err := r.InsertSubmission(ctx, tx, domain.VideoSubmission{
			ID: id, ApplicationID: app.ID, Slot: 1, WeekNumber: &week, Track: domain.TrackVideo,
			Version: version, FileName: "clip.mp4", FileSize: 10, URL: "/media/" + id, CreatedAt: ts,
		})
		if err != nil {
			return err
		}
		return tx.Commit()
	}
	if v, _ := r.MaxVersion(ctx, app.ID, 1, domain.TrackVideo); v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
	if err := insert("s1", 1); err != nil {
		t.Fatal(err)
	}
	if err := insert("s2", 1); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := insert("s3", 2); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.MaxVersion(ctx, app.ID, 1, domain.TrackVideo); v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}
	if v, _ := r.MaxVersion(ctx, app.ID, 1, domain.TrackCleanVideo); v != 0 {
		t.Fatalf("clean track shares counter: %d", v)
	}
	subs, err := r.ListSubmissions(ctx, repo.SubmissionFilters{ApplicationID: app.ID})
	if err != nil || len(subs) != 2 || *subs[0].WeekNumber != 1 {
		t.Fatalf("list %+v %v", subs, err)
	}
	if _, err := r.DB.Exec(`DELETE FROM video_submissions`); err == nil {
		t.Fatalf("submission history deleted")
	}
}

func TestEventsCursor(t *testing.T) {
	r, ctx := newRepo(t)
	for i := 0; i < 3; i++ {
		if _, err := r.DB.Exec(`INSERT INTO events(ts,type,campaign_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
			ts, "slot.transitioned", "camp-1", "application", "app-1", "ops", "{}"); err != nil {
			t.Fatal(err)
		}
	}
	latest, err := r.LatestEventID(ctx)
	if err != nil || latest != 3 {
		t.Fatalf("latest %d %v", latest, err)
	}
	after, err := r.EventsAfter(ctx, 10, 1)
	if err != nil || len(after) != 2 || after[0].ID != 2 {
		t.Fatalf("after %+v %v", after, err)
	}
	newest, err := r.LatestEvents(ctx, repo.EventFilters{CampaignID: "camp-1", Limit: 2})
	if err != nil || len(newest) != 2 || newest[0].ID != 3 {
		t.Fatalf("latest events %+v %v", newest, err)
	}
}
