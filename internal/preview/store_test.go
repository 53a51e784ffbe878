package preview

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func newStore(t *testing.T, maxBytes int64) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewStore(fs, "/previews", maxBytes)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, fs
}

func TestStageOpenRelease(t *testing.T) {
	store, fs := newStore(t, 0)

	ref, err := store.Stage("../clips/Crash.MP4", strings.NewReader("frames"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if ref.Name != "Crash.MP4" || ref.Size != 6 {
		t.Fatalf("unexpected ref %+v", ref)
	}

	f, _, err := store.Open(ref.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	_ = f.Close()
	if string(data) != "frames" {
		t.Fatalf("read %q", data)
	}

	if err := store.Release(ref.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := store.Release(ref.ID); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, _, err := store.Open(ref.ID); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	entries, _ := afero.ReadDir(fs, "/previews")
	if len(entries) != 0 {
		t.Fatalf("expected no staged files, found %d", len(entries))
	}
}

func TestStageRejectsOversizedVideo(t *testing.T) {
	store, fs := newStore(t, 4)

	if _, err := store.Stage("big.mkv", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := afero.ReadDir(fs, "/previews")
	if len(entries) != 0 || store.Active() != 0 {
		t.Fatalf("oversized upload left state behind")
	}
}

func TestReleaseAll(t *testing.T) {
	store, _ := newStore(t, 0)
	for i := 0; i < 3; i++ {
		if _, err := store.Stage("clip.mp4", strings.NewReader("x")); err != nil {
			t.Fatalf("Stage: %v", err)
		}
	}
	if store.Active() != 3 {
		t.Fatalf("active = %d", store.Active())
	}
	if err := store.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if store.Active() != 0 {
		t.Fatalf("active after ReleaseAll = %d", store.Active())
	}
}
