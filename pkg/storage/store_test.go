package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, File{Name: "hello.bas", Content: []byte("10 PRINT 1")}); err != nil {
		t.Fatal(err)
	}
	f, err := s.Load(ctx, "HELLO.BAS")
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "HELLO.BAS" || string(f.Content) != "10 PRINT 1" || f.Type != "" {
		t.Errorf("file = %+v", f)
	}

	// overwrite
	_ = s.Save(ctx, File{Name: "Hello.bas", Type: "A", Content: []byte("x")})
	f, _ = s.Load(ctx, "hello.bas")
	if f.Type != "A" || string(f.Content) != "x" {
		t.Errorf("overwritten file = %+v", f)
	}

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file error = %v", err)
	}
	if err := s.Save(ctx, File{Name: " "}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name error = %v", err)
	}
}

func TestBinaryFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, File{Name: "screen.bin", Type: "B", Content: []byte{1, 2, 3}, Address: 0xc000, Entry: 0xc000})
	f, err := s.Load(ctx, "screen.bin")
	if err != nil {
		t.Fatal(err)
	}
	if f.Address != 0xc000 || f.Entry != 0xc000 || len(f.Content) != 3 {
		t.Errorf("file = %+v", f)
	}
}

func TestCatalogAndErase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, n := range []string{"a.bas", "b.bas", "data.txt", "ab.bin"} {
		_ = s.Save(ctx, File{Name: n, Content: []byte(n)})
	}

	tests := []struct {
		mask string
		want []string
	}{
		{"", []string{"A.BAS", "AB.BIN", "B.BAS", "DATA.TXT"}},
		{"*.bas", []string{"A.BAS", "B.BAS"}},
		{"?.BAS", []string{"A.BAS", "B.BAS"}},
		{"a*", []string{"A.BAS", "AB.BIN"}},
		{"x*", nil},
	}
	for _, tt := range tests {
		got, err := s.Catalog(ctx, tt.mask)
		if err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, fi := range got {
			names = append(names, fi.Name)
		}
		if len(names) != len(tt.want) {
			t.Errorf("Catalog(%q) = %v, want %v", tt.mask, names, tt.want)
			continue
		}
		for i := range names {
			if names[i] != tt.want[i] {
				t.Errorf("Catalog(%q) = %v, want %v", tt.mask, names, tt.want)
				break
			}
		}
	}

	n, err := s.Erase(ctx, "*.bas")
	if err != nil || n != 2 {
		t.Errorf("Erase = %d, %v", n, err)
	}
	if _, err := s.Erase(ctx, "*.bas"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second erase error = %v", err)
	}
	if _, err := s.Erase(ctx, ""); err == nil {
		t.Error("empty mask accepted")
	}
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, File{Name: "old", Content: []byte("1")})
	_ = s.Save(ctx, File{Name: "taken", Content: []byte("2")})

	if err := s.Rename(ctx, "taken", "old"); !errors.Is(err, ErrFileExists) {
		t.Errorf("rename onto existing file: %v", err)
	}
	if err := s.Rename(ctx, "new", "nothere"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("rename missing file: %v", err)
	}
	if err := s.Rename(ctx, "new", "old"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "old"); !errors.Is(err, ErrFileNotFound) {
		t.Error("old name still present")
	}
	if f, err := s.Load(ctx, "new"); err != nil || string(f.Content) != "1" {
		t.Errorf("renamed file = %+v, %v", f, err)
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, d := range []string{"one", "two", "three"} {
		id, err := s.SaveSnapshot(ctx, "slot", []byte(d))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	data, err := s.LoadSnapshot(ctx, ids[0])
	if err != nil || string(data) != "one" {
		t.Errorf("by id = %q, %v", data, err)
	}
	data, _ = s.LoadSnapshot(ctx, "slot")
	if string(data) != "three" {
		t.Errorf("by label = %q, want newest", data)
	}

	list, _ := s.ListSnapshots(ctx)
	if len(list) != 3 || list[0].ID != ids[2] || list[0].Size != 5 {
		t.Errorf("list = %+v", list)
	}

	n, err := s.PruneSnapshots(ctx, 1)
	if err != nil || n != 2 {
		t.Errorf("prune = %d, %v", n, err)
	}
	if _, err := s.LoadSnapshot(ctx, ids[0]); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("pruned snapshot still loads: %v", err)
	}
	if _, err := s.LoadSnapshot(ctx, ids[2]); err != nil {
		t.Errorf("newest snapshot pruned: %v", err)
	}
}
