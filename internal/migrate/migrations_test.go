package migrate

import (
	"context"
	"testing"

	"campaignline/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()
	current, latest, err := Version(ctx, conn)
	if err != nil || current != 0 || latest < 1 {
		t.Fatalf("fresh version %d/%d %v", current, latest, err)
	}
	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
	current, latest, err = Version(ctx, conn)
	if err != nil || current != latest {
		t.Fatalf("migrated version %d/%d %v", current, latest, err)
	}
	for _, table := range []string{"campaigns", "campaign_slots", "applications", "application_slots", "video_submissions", "revision_requests", "events", "api_keys"} {
		var name string
		if err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
