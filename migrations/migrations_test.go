package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(FS, down); err != nil {
			t.Fatalf("missing %s for %s", down, up)
		}
	}
}

func TestSourceParses(t *testing.T) {
	src, err := iofs.New(FS, ".")
	if err != nil {
		t.Fatalf("iofs.New: %v", err)
	}
	defer src.Close()

	first, err := src.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first version 1, got %d", first)
	}
	next, err := src.Next(first)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next != 2 {
		t.Fatalf("expected version 2, got %d", next)
	}
}

func TestSchemaDefinesIncrementProcedure(t *testing.T) {
	b, err := FS.ReadFile("000001_create_playlists.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if !strings.Contains(string(b), "FUNCTION increment_playlist_like(p_playlist_id UUID)") {
		t.Fatalf("schema does not define increment_playlist_like")
	}
}
