package search

import (
	"context"
	"path/filepath"
	"testing"

	"harmonium/internal/catalog"
	"harmonium/internal/differ"
	"harmonium/internal/scanner"
)

func setupIndex(t testing.TB, files ...scanner.ScannedFile) (*Index, *catalog.Catalog) {
	t.Helper()

	cat, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	if len(files) > 0 {
		if _, err := differ.NewApplier(cat, 0).Apply(context.Background(), differ.Changes{Added: files}); err != nil {
			t.Fatalf("Seed apply failed: %v", err)
		}
	}

	idx := New(cat)
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return idx, cat
}

func file(path, artist, album, title string) scanner.ScannedFile {
	return scanner.ScannedFile{
		Path:        path,
		Fingerprint: catalog.Fingerprint{Path: path, Size: 1, MTimeNS: 1},
		Changed:     true,
		Tags:        &scanner.TagInfo{Artist: artist, Album: album, Title: title},
	}
}

func TestSearchMatchesAllKinds(t *testing.T) {
	idx, _ := setupIndex(t,
		file("1.mp3", "Blue Note Band", "Blueprint", "Blue Moon"),
		file("2.mp3", "Other Act", "Other Album", "Other Song"),
	)

	results := idx.Search("blue", 10)
	if len(results.Artists) != 1 || len(results.Albums) != 1 || len(results.Tracks) != 1 {
		t.Errorf("Results = %d/%d/%d artists/albums/tracks, want 1/1/1",
			len(results.Artists), len(results.Albums), len(results.Tracks))
	}
}

func TestSearchIsCaseAndAccentInsensitive(t *testing.T) {
	idx, _ := setupIndex(t, file("1.mp3", "Sigur Rós", "Takk", "Glósóli"))

	for _, q := range []string{"SIGUR", "sigur ros", "glosoli", "GLÓSÓLI"} {
		results := idx.Search(q, 10)
		if len(results.Artists)+len(results.Tracks) == 0 {
			t.Errorf("Search(%q) found nothing", q)
		}
	}
}

func TestSearchRanksPrefixFirst(t *testing.T) {
	idx, _ := setupIndex(t,
		file("1.mp3", "A", "X", "Nightswimming"),
		file("2.mp3", "A", "X", "Night Moves"),
		file("3.mp3", "A", "X", "A Hard Day's Night"),
	)

	results := idx.Search("night", 10)
	if len(results.Tracks) != 3 {
		t.Fatalf("Tracks = %d, want 3", len(results.Tracks))
	}
	// The interior match comes last.
	if results.Tracks[2].Name != "A Hard Day's Night" {
		t.Errorf("Last result = %q, want the interior match", results.Tracks[2].Name)
	}
}

func TestSearchEmptyQueryMatchesNothing(t *testing.T) {
	idx, _ := setupIndex(t, file("1.mp3", "A", "B", "C"))

	results := idx.Search("   ", 10)
	if len(results.Artists)+len(results.Albums)+len(results.Tracks) != 0 {
		t.Error("Blank query returned matches")
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	var files []scanner.ScannedFile
	for i := 0; i < 10; i++ {
		files = append(files, file(
			filepath.Join("d", string(rune('a'+i))+".mp3"),
			"Artist", "Album", "Common Title "+string(rune('a'+i))))
	}
	idx, _ := setupIndex(t, files...)

	results := idx.Search("common", 3)
	if len(results.Tracks) != 3 {
		t.Errorf("Tracks = %d, want limit of 3", len(results.Tracks))
	}
}

func TestRefreshSkipsWhenGenerationUnchanged(t *testing.T) {
	idx, cat := setupIndex(t, file("1.mp3", "A", "B", "C"))

	genBefore := idx.Generation()
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if idx.Generation() != genBefore {
		t.Error("Refresh rebuilt despite unchanged generation")
	}

	// A new apply moves the generation and the next refresh picks it up.
	if _, err := differ.NewApplier(cat, 0).Apply(context.Background(),
		differ.Changes{Added: []scanner.ScannedFile{file("2.mp3", "D", "E", "F")}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if idx.Generation() != genBefore+1 {
		t.Errorf("Generation = %d, want %d", idx.Generation(), genBefore+1)
	}
	if got := idx.Search("F", 10); len(got.Tracks) != 1 {
		t.Error("New track not searchable after refresh")
	}
}

func TestShuffleSamplesWithoutReplacement(t *testing.T) {
	var files []scanner.ScannedFile
	for i := 0; i < 20; i++ {
		files = append(files, file(
			filepath.Join("d", string(rune('a'+i))+".mp3"),
			"Artist", "Album", "T"+string(rune('a'+i))))
	}
	idx, _ := setupIndex(t, files...)

	got := idx.Shuffle(10)
	if len(got) != 10 {
		t.Fatalf("Shuffle returned %d ids, want 10", len(got))
	}
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Errorf("Duplicate id %q in shuffle sample", id)
		}
		seen[id] = true
	}
}

func TestShuffleCapsAtLibrarySize(t *testing.T) {
	idx, _ := setupIndex(t, file("1.mp3", "A", "B", "C"))

	if got := idx.Shuffle(50); len(got) != 1 {
		t.Errorf("Shuffle returned %d ids, want 1", len(got))
	}
	if got := idx.Shuffle(0); got != nil {
		t.Errorf("Shuffle(0) = %v, want nil", got)
	}
}
