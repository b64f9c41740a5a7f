package storage

import (
	"path/filepath"
	"testing"
)

func testDb(t *testing.T) *Sqlite {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "syncpad.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := testDb(t)

	ops := []byte(`[{"ops":[{"insert":"hello"}]}]`)
	if err := s.SaveSnapshot("r1", ops, "hello"); err != nil {
		t.Fatal(err)
	}

	gotOps, content, err := s.LoadSnapshot("r1")
	if err != nil {
		t.Fatal(err)
	}
	if string(gotOps) != string(ops) {
		t.Errorf("ops %s, want %s", gotOps, ops)
	}
	if content != "hello" {
		t.Errorf("content %q, want %q", content, "hello")
	}
}

func TestSnapshotUpsert(t *testing.T) {
	s := testDb(t)
	if err := s.SaveSnapshot("r1", []byte(`[]`), ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot("r1", []byte(`[{"ops":[{"insert":"v2"}]}]`), "v2"); err != nil {
		t.Fatal(err)
	}

	_, content, err := s.LoadSnapshot("r1")
	if err != nil {
		t.Fatal(err)
	}
	if content != "v2" {
		t.Errorf("content %q, want the second write", content)
	}
}

func TestLoadMissingRoom(t *testing.T) {
	s := testDb(t)
	ops, content, err := s.LoadSnapshot("never-seen")
	if err != nil {
		t.Fatal(err)
	}
	if ops != nil || content != "" {
		t.Errorf("missing room yielded data: %s, %q", ops, content)
	}
}

func TestRoomsIsolated(t *testing.T) {
	s := testDb(t)
	if err := s.SaveSnapshot("r1", []byte(`["a"]`), "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot("r2", []byte(`["b"]`), "b"); err != nil {
		t.Fatal(err)
	}

	_, content, err := s.LoadSnapshot("r2")
	if err != nil {
		t.Fatal(err)
	}
	if content != "b" {
		t.Errorf("r2 content %q, want %q", content, "b")
	}
}
