package document

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/syncpad/syncpad/pkg/logger"
)

type memStore struct {
	mu    sync.Mutex
	ops   map[string][]byte
	text  map[string]string
	saves int
}

func newMemStore() *memStore {
	return &memStore{ops: map[string][]byte{}, text: map[string]string{}}
}

func (s *memStore) SaveSnapshot(roomId string, ops []byte, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[roomId] = ops
	s.text[roomId] = content
	s.saves++
	return nil
}

func (s *memStore) LoadSnapshot(roomId string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops[roomId], s.text[roomId], nil
}

func op(s string) json.RawMessage { return json.RawMessage(s) }

func TestApplyComposition(t *testing.T) {
	tests := []struct {
		name string
		ops  []string
		want string
	}{
		{"insert into empty", []string{`{"ops":[{"insert":"hello"}]}`}, "hello"},
		{"append after retain", []string{
			`{"ops":[{"insert":"hello"}]}`,
			`{"ops":[{"retain":5},{"insert":" world"}]}`,
		}, "hello world"},
		{"insert mid-string", []string{
			`{"ops":[{"insert":"hd"}]}`,
			`{"ops":[{"retain":1},{"insert":"a"}]}`,
		}, "had"},
		{"delete range", []string{
			`{"ops":[{"insert":"hello world"}]}`,
			`{"ops":[{"retain":5},{"delete":6}]}`,
		}, "hello"},
		{"replace", []string{
			`{"ops":[{"insert":"cat"}]}`,
			`{"ops":[{"delete":3},{"insert":"dog"}]}`,
		}, "dog"},
		{"attribute-only retain keeps text", []string{
			`{"ops":[{"insert":"bold"}]}`,
			`{"ops":[{"retain":4,"attributes":{"bold":true}}]}`,
		}, "bold"},
		{"embed occupies one position", []string{
			`{"ops":[{"insert":"ab"}]}`,
			`{"ops":[{"retain":1},{"insert":{"image":"x.png"}}]}`,
			`{"ops":[{"retain":2},{"insert":"c"}]}`,
		}, "a￼cb"},
		{"unicode positions are runes", []string{
			`{"ops":[{"insert":"héllo"}]}`,
			`{"ops":[{"retain":5},{"insert":"!"}]}`,
		}, "héllo!"},
		{"delete past end clamps", []string{
			`{"ops":[{"insert":"ab"}]}`,
			`{"ops":[{"retain":1},{"delete":99}]}`,
		}, "a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var content []rune
			for _, raw := range tc.ops {
				next, err := apply(content, []byte(raw))
				if err != nil {
					t.Fatalf("apply(%s): %v", raw, err)
				}
				content = next
			}
			if got := string(content); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestApplyOpaqueOp(t *testing.T) {
	content := []rune("keep")
	next, err := apply(content, []byte(`"not a delta"`))
	if err != errOpaqueOp {
		t.Fatalf("got %v, want errOpaqueOp", err)
	}
	if string(next) != "keep" {
		t.Errorf("opaque op touched the content: %q", string(next))
	}
}

func TestEngineAppliesInArrivalOrder(t *testing.T) {
	e := NewEngine(nil, logger.New(false))
	e.ApplyChange("r2", op(`{"ops":[{"insert":"hello"}]}`))
	e.ApplyChange("r2", op(`{"ops":[{"retain":5},{"insert":" world"}]}`))

	content, ops := e.Snapshot("r2")
	if content != "hello world" {
		t.Errorf("snapshot %q, want %q", content, "hello world")
	}
	if len(ops) != 2 {
		t.Errorf("log has %d ops, want 2", len(ops))
	}

	// the snapshot is reproducible by replaying the log from empty
	var replay []rune
	for _, raw := range ops {
		next, err := apply(replay, raw)
		if err != nil {
			t.Fatal(err)
		}
		replay = next
	}
	if string(replay) != content {
		t.Errorf("replay %q diverged from snapshot %q", string(replay), content)
	}
}

func TestEngineKeepsOpaqueOpsInLog(t *testing.T) {
	e := NewEngine(nil, logger.New(false))
	e.ApplyChange("r1", op(`{"ops":[{"insert":"x"}]}`))
	e.ApplyChange("r1", op(`{"unknown":"format"}`))

	content, ops := e.Snapshot("r1")
	if content != "x" {
		t.Errorf("opaque op changed the snapshot: %q", content)
	}
	if len(ops) != 2 {
		t.Errorf("opaque op missing from the log, have %d", len(ops))
	}
}

func TestEngineUnknownRoomIsEmpty(t *testing.T) {
	e := NewEngine(nil, logger.New(false))
	content, ops := e.Snapshot("never-seen")
	if content != "" || len(ops) != 0 {
		t.Errorf("fresh room not empty: %q, %d ops", content, len(ops))
	}
}

func TestEngineFlushOnlyWhenDirty(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, logger.New(false))

	e.Flush("r1")
	if store.saves != 0 {
		t.Fatal("flushed a room that never changed")
	}

	e.ApplyChange("r1", op(`{"ops":[{"insert":"hi"}]}`))
	e.Flush("r1")
	if store.saves != 1 {
		t.Fatalf("got %d saves, want 1", store.saves)
	}
	e.Flush("r1")
	if store.saves != 1 {
		t.Fatal("clean room flushed again")
	}

	e.ApplyChange("r1", op(`{"ops":[{"retain":2},{"insert":"!"}]}`))
	e.Flush("r1")
	if store.saves != 2 {
		t.Fatalf("got %d saves, want 2", store.saves)
	}
	if store.text["r1"] != "hi!" {
		t.Errorf("stored content %q, want %q", store.text["r1"], "hi!")
	}
}

func TestEngineRestoresFromStore(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, logger.New(false))
	e.ApplyChange("r1", op(`{"ops":[{"insert":"persisted"}]}`))
	e.Drop("r1")
	if store.saves != 1 {
		t.Fatalf("drop did not flush, %d saves", store.saves)
	}

	// a second engine stands in for a restart
	e2 := NewEngine(store, logger.New(false))
	content, ops := e2.Snapshot("r1")
	if content != "persisted" {
		t.Errorf("restored content %q, want %q", content, "persisted")
	}
	if len(ops) != 1 {
		t.Errorf("restored log has %d ops, want 1", len(ops))
	}

	// edits continue on top of the restored state
	e2.ApplyChange("r1", op(`{"ops":[{"retain":9},{"insert":"!"}]}`))
	content, _ = e2.Snapshot("r1")
	if content != "persisted!" {
		t.Errorf("got %q, want %q", content, "persisted!")
	}
}
