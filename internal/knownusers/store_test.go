package knownusers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestReadSanitizes(t *testing.T) {
	tests := []struct {
		name   string
		stored []byte
		want   []int64
	}{
		{"absent", nil, []int64{}},
		{"not json", []byte("not json"), []int64{}},
		{"object", []byte("{}"), []int64{}},
		{"null", []byte("null"), []int64{}},
		{"mixed elements", []byte(`[1,-2,"x",3]`), []int64{1, 3}},
		{"fractions and zero dropped", []byte(`[2.5,0,4.0,1e1]`), []int64{4, 10}},
		{"unsorted with duplicates", []byte(`[9,3,9,1]`), []int64{1, 3, 9}},
		{"trailing garbage", []byte(`[1,2] x`), []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(NewMemoryBackend(tt.stored), nil)
			got := c.Read(context.Background())
			if got == nil {
				t.Fatal("Read must return a non-nil set")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRememberKeepsSetSortedAndUnique(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend([]byte("garbage")), nil)

	inputs := []int64{5, -1, 3, 0, 5, 12, -40, 1, 3}
	for _, id := range inputs {
		got, err := c.Remember(ctx, id)
		if err != nil {
			t.Fatalf("Remember(%d) failed: %v", id, err)
		}
		if !slices.IsSorted(got) {
			t.Errorf("after Remember(%d): not sorted: %v", id, got)
		}
		if len(slices.Compact(slices.Clone(got))) != len(got) {
			t.Errorf("after Remember(%d): duplicates: %v", id, got)
		}
		for _, v := range got {
			if v <= 0 {
				t.Errorf("after Remember(%d): non-positive member %d", id, v)
			}
		}
		if persisted := c.Read(ctx); !slices.Equal(persisted, got) {
			t.Errorf("after Remember(%d): persisted %v, returned %v", id, persisted, got)
		}
	}

	if got := c.Read(ctx); !slices.Equal(got, []int64{1, 3, 5, 12}) {
		t.Errorf("unexpected final set %v", got)
	}
}

func TestRememberRaw(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend(nil), nil)

	for _, raw := range []string{"7", " 2 ", "abc", "-4", "1.5", ""} {
		if _, err := c.RememberRaw(ctx, raw); err != nil {
			t.Fatalf("RememberRaw(%q) failed: %v", raw, err)
		}
	}
	if got := c.Read(ctx); !slices.Equal(got, []int64{2, 7}) {
		t.Errorf("expected [2 7], got %v", got)
	}
}

func TestWriteNormalizes(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(nil)
	c := New(backend, nil)

	got, err := c.Write(ctx, []int64{4, -1, 2, 4, 0})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !slices.Equal(got, []int64{2, 4}) {
		t.Errorf("expected [2 4], got %v", got)
	}

	raw, _ := backend.Load(ctx)
	if string(raw) != "[2,4]" {
		t.Errorf("expected persisted [2,4], got %s", raw)
	}

	if _, err := c.Write(ctx, nil); err != nil {
		t.Fatalf("Write(nil) failed: %v", err)
	}
	raw, _ = backend.Load(ctx)
	if string(raw) != "[]" {
		t.Errorf("expected empty array, got %s", raw)
	}
}

type failingBackend struct{}

func (failingBackend) Load(ctx context.Context) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingBackend) Save(ctx context.Context, data []byte) error {
	return errors.New("disk gone")
}

func TestUnreadableBackendIsEmpty(t *testing.T) {
	c := New(failingBackend{}, nil)
	if got := c.Read(context.Background()); len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
	got, err := c.Remember(context.Background(), 3)
	if err == nil {
		t.Fatal("expected save error to be returned")
	}
	if !slices.Equal(got, []int64{3}) {
		t.Errorf("expected normalized set even on save failure, got %v", got)
	}
}

func TestFileBackendSurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile", "known-users.json")

	first := New(NewFileBackend(path), nil)
	if got := first.Read(ctx); len(got) != 0 {
		t.Fatalf("expected empty set before first write, got %v", got)
	}
	if _, err := first.Remember(ctx, 8); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if _, err := first.Remember(ctx, 2); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	second := New(NewFileBackend(path), nil)
	if got := second.Read(ctx); !slices.Equal(got, []int64{2, 8}) {
		t.Errorf("expected [2 8] after reload, got %v", got)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := second.Read(ctx); len(got) != 0 {
		t.Errorf("expected corrupted file to read as empty, got %v", got)
	}
}
