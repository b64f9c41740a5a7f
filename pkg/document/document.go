// Package document keeps the authoritative in-memory document state per
// room and merges incremental edit operations in server-receipt order.
// No transformation or rebasing is performed: concurrent operations
// apply last-in-arrival-order, which is the documented policy.
package document

import (
	"github.com/goccy/go-json"

	"github.com/syncpad/syncpad/pkg/com"
	"github.com/syncpad/syncpad/pkg/logger"
)

// Store is the external persistence collaborator. Saves are
// fire-and-forget: failures are logged and never block editing.
type Store interface {
	SaveSnapshot(roomId string, ops []byte, content string) error
	// LoadSnapshot returns (nil, "", nil) when the room has none.
	LoadSnapshot(roomId string) (ops []byte, content string, err error)
}

// Doc is one room's operation log plus the materialized snapshot.
// Applying the full log from empty state reproduces the snapshot.
// All mutation for one room happens on that room's dispatch loop,
// so Doc itself carries no lock.
type Doc struct {
	ops     []json.RawMessage
	content []rune
	dirty   bool
}

func (d *Doc) Ops() []json.RawMessage { return d.ops }
func (d *Doc) Content() string        { return string(d.content) }

type Engine struct {
	rooms com.Map[string, *Doc]
	store Store
	log   *logger.Logger
}

func NewEngine(store Store, log *logger.Logger) *Engine {
	return &Engine{rooms: com.NewMap[string, *Doc](), store: store, log: log}
}

// GetOrInit returns the room's document, initializing an empty one on
// first reference. A re-opened room restores its last flushed snapshot
// from the store before falling back to empty.
func (e *Engine) GetOrInit(roomId string) *Doc {
	doc, _ := e.rooms.GetOrPut(roomId, func() *Doc { return e.restore(roomId) })
	return doc
}

func (e *Engine) restore(roomId string) *Doc {
	doc := &Doc{}
	if e.store == nil {
		return doc
	}
	rawOps, content, err := e.store.LoadSnapshot(roomId)
	if err != nil {
		e.log.Error().Err(err).Str("room", roomId).Msg("snapshot load failed")
		return doc
	}
	if rawOps == nil {
		return doc
	}
	var ops []json.RawMessage
	if err := json.Unmarshal(rawOps, &ops); err != nil {
		e.log.Error().Err(err).Str("room", roomId).Msg("stored op log is corrupt")
		return doc
	}
	doc.ops = ops
	doc.content = []rune(content)
	e.log.Debug().Str("room", roomId).Int("ops", len(ops)).Msg("document restored")
	return doc
}

// ApplyChange appends the operation to the room's log and updates the
// materialized snapshot. The raw operation itself is what gets fanned
// out to the other members; fan-out is the hub's business.
func (e *Engine) ApplyChange(roomId string, op json.RawMessage) {
	doc := e.GetOrInit(roomId)
	doc.ops = append(doc.ops, op)
	doc.dirty = true
	next, err := apply(doc.content, op)
	if err != nil {
		e.log.Warn().Str("room", roomId).Msg("opaque operation kept in log, not materialized")
		return
	}
	doc.content = next
}

// Snapshot returns the current materialized content and the op log.
// An unknown room yields an empty document, never an error.
func (e *Engine) Snapshot(roomId string) (string, []json.RawMessage) {
	doc := e.GetOrInit(roomId)
	return doc.Content(), doc.ops
}

// Flush hands the room's snapshot to the store when it changed since
// the last flush.
func (e *Engine) Flush(roomId string) {
	if e.store == nil {
		return
	}
	doc, err := e.rooms.Find(roomId)
	if err != nil || !doc.dirty {
		return
	}
	rawOps, err := json.Marshal(doc.ops)
	if err != nil {
		e.log.Error().Err(err).Str("room", roomId).Msg("op log marshal failed")
		return
	}
	if err := e.store.SaveSnapshot(roomId, rawOps, doc.Content()); err != nil {
		e.log.Error().Err(err).Str("room", roomId).Msg("snapshot save failed")
		return
	}
	doc.dirty = false
}

// Drop flushes and forgets the room's in-memory state; called when the
// room's membership drains to zero.
func (e *Engine) Drop(roomId string) {
	e.Flush(roomId)
	e.rooms.RemoveByKey(roomId)
}
