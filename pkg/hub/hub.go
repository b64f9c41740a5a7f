// Package hub is the room-scoped relay: it tracks which connections
// belong to which room, fans out code and document events, and forwards
// voice signaling between peer pairs. All state mutation for one room
// is serialized on that room's dispatch loop; rooms run in parallel.
package hub

import (
	"net/http"
	"sync"

	"github.com/syncpad/syncpad/pkg/api"
	"github.com/syncpad/syncpad/pkg/com"
	"github.com/syncpad/syncpad/pkg/config"
	"github.com/syncpad/syncpad/pkg/document"
	"github.com/syncpad/syncpad/pkg/logger"
	"github.com/syncpad/syncpad/pkg/session"
)

// Member is one connection as a room sees it.
type Member interface {
	Id() com.Uid
	Name() string
	SetName(string)
	Notify(t api.PT, payload any)
}

type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// byClient resolves a connection to its room, many-to-one
	byClient com.Map[com.Uid, *Room]

	docs *document.Engine
	conf config.Config
	up   *com.Upgrader
	log  *logger.Logger
}

func New(conf config.Config, docs *document.Engine, log *logger.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]*Room),
		byClient: com.NewMap[com.Uid, *Room](),
		docs:     docs,
		conf:     conf,
		up:       com.NewUpgrader(conf.Server.Origin),
		log:      log,
	}
}

// Handler upgrades /ws requests and runs the connection until it drops.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Msgf("recovered: %v", r)
			}
		}()
		conn, err := com.NewServer(w, r, h.up, h.log)
		if err != nil {
			h.log.Error().Err(err).Msg("socket upgrade failed")
			return
		}
		sess := session.New(conn, h.log)
		sess.OnPacket(func(in api.In) { h.Dispatch(sess, in) })
		sess.Listen()
		sess.Wait()
		h.Leave(sess)
	}
}

// Dispatch routes one packet. Everything except Join requires the
// sender to already be a room member; stray packets are dropped.
func (h *Hub) Dispatch(m Member, in api.In) {
	if in.T == api.Join {
		if rq := api.Unwrap[api.JoinRequest](in.Payload); rq != nil {
			h.Join(rq.RoomId, m, rq.Username)
		}
		return
	}
	room, err := h.byClient.Find(m.Id())
	if err != nil {
		h.log.Warn().Msgf("%v from a roomless connection", in.T)
		return
	}
	room.enqueue(event{kind: evPacket, from: m, in: in})
}

// Join adds the connection to the room, creating the room lazily.
// Joining twice with the same connection id is a no-op that re-returns
// the current membership. A connection already seated in another room
// stays there.
func (h *Hub) Join(roomId string, m Member, username string) {
	if roomId == "" {
		return
	}
	if cur, err := h.byClient.Find(m.Id()); err == nil && cur.id != roomId {
		h.log.Warn().Str("room", roomId).Msg("join while a member of another room, ignored")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomId]
	if !ok {
		room = newRoom(roomId, h)
		h.rooms[roomId] = room
		roomsGauge.Inc()
		go room.run(h.conf.Document.FlushInterval)
	}
	h.byClient.Put(m.Id(), room)
	room.events <- event{kind: evJoin, from: m, username: username}
}

// Leave removes the connection from its room on disconnect; no-op for
// connections that never joined.
func (h *Hub) Leave(m Member) {
	room, err := h.byClient.Find(m.Id())
	if err != nil {
		return
	}
	h.byClient.RemoveByKey(m.Id())
	room.enqueue(event{kind: evLeave, from: m})
}

// retire removes a drained room unless a late join slipped into its
// queue; called from the room's own loop.
func (h *Hub) retire(r *Room) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(r.events) > 0 {
		return false
	}
	delete(h.rooms, r.id)
	roomsGauge.Dec()
	close(r.done)
	return true
}

// sync posts a barrier event and waits for the room loop to pass it.
func (h *Hub) sync(roomId string) {
	h.mu.Lock()
	room, ok := h.rooms[roomId]
	h.mu.Unlock()
	if !ok {
		return
	}
	done := make(chan struct{})
	if room.enqueue(event{kind: evBarrier, barrier: done}) {
		<-done
	}
}
