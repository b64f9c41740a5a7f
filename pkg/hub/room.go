package hub

import (
	"time"

	"github.com/syncpad/syncpad/pkg/api"
	"github.com/syncpad/syncpad/pkg/logger"
)

type eventKind uint8

const (
	evJoin eventKind = iota
	evLeave
	evPacket
	evBarrier
)

type event struct {
	kind     eventKind
	from     Member
	in       api.In
	username string
	barrier  chan struct{}
}

// Room owns its membership set, the advisory code buffer and the
// voice-participant subset. Only the room's run loop touches them,
// which gives FIFO per room without a lock on the shared document.
type Room struct {
	id  string
	hub *Hub
	log *logger.Logger

	members []Member // ordered by join time
	voice   []Member

	// last broadcast code buffer, last-writer-wins, advisory only
	code     string
	language string

	events chan event
	done   chan struct{}
}

func newRoom(id string, h *Hub) *Room {
	return &Room{
		id:     id,
		hub:    h,
		log:    h.log.Extend(h.log.With().Str("room", id)),
		events: make(chan event, 256),
		done:   make(chan struct{}),
	}
}

// enqueue posts an event unless the room has been retired.
func (r *Room) enqueue(ev event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

// run is the room's single dispatch loop. The flush ticker is
// room-scoped and dies with the room.
func (r *Room) run(flushEvery time.Duration) {
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
			if len(r.members) == 0 && len(r.events) == 0 {
				if r.hub.retire(r) {
					r.hub.docs.Drop(r.id)
					r.log.Debug().Msg("room retired")
					return
				}
			}
		case <-ticker.C:
			r.hub.docs.Flush(r.id)
		}
	}
}

func (r *Room) handle(ev event) {
	switch ev.kind {
	case evJoin:
		eventsTotal.WithLabelValues(api.Join.String()).Inc()
		r.join(ev.from, ev.username)
	case evLeave:
		eventsTotal.WithLabelValues(api.Disconnected.String()).Inc()
		r.leave(ev.from)
	case evBarrier:
		close(ev.barrier)
	case evPacket:
		eventsTotal.WithLabelValues(ev.in.T.String()).Inc()
		r.packet(ev.from, ev.in)
	}
}

func (r *Room) packet(m Member, in api.In) {
	switch in.T {
	case api.CodeChange:
		if rq := api.Unwrap[api.CodeChangeRequest](in.Payload); rq != nil {
			r.codeChange(m, rq)
		}
	case api.SyncCode:
		if rq := api.Unwrap[api.SyncCodeRequest](in.Payload); rq != nil {
			r.syncCode(rq)
		}
	case api.GetDocument:
		r.getDocument(m)
	case api.DocChange:
		if rq := api.Unwrap[api.DocChangeRequest](in.Payload); rq != nil {
			r.docChange(m, rq)
		}
	case api.SaveDocument:
		r.hub.docs.Flush(r.id)
	case api.VoiceJoin:
		if rq := api.Unwrap[api.VoiceJoinRequest](in.Payload); rq != nil {
			r.voiceJoin(m, rq.Username)
		}
	case api.VoiceOffer:
		if rq := api.Unwrap[api.VoiceOfferPayload](in.Payload); rq != nil {
			r.relay(rq.PeerId, api.VoiceOffer, api.VoiceOfferPayload{
				Offer: rq.Offer, PeerId: m.Id().String(), Username: m.Name(),
			})
		}
	case api.VoiceAnswer:
		if rq := api.Unwrap[api.VoiceAnswerPayload](in.Payload); rq != nil {
			r.relay(rq.PeerId, api.VoiceAnswer, api.VoiceAnswerPayload{
				Answer: rq.Answer, PeerId: m.Id().String(),
			})
		}
	case api.IceCandidate:
		if rq := api.Unwrap[api.IceCandidatePayload](in.Payload); rq != nil {
			r.relay(rq.PeerId, api.IceCandidate, api.IceCandidatePayload{
				Candidate: rq.Candidate, PeerId: m.Id().String(),
			})
		}
	case api.VoiceLeave:
		r.voiceLeave(m)
	default:
		r.log.Warn().Msgf("unhandled packet %v", in.T)
	}
}

func (r *Room) join(m Member, username string) {
	if cur := r.member(m.Id().String()); cur != nil {
		// rejoin with the same connection id re-returns membership
		// under the stored name, a rename needs a fresh connection
		m.Notify(api.Joined, api.JoinedResponse{
			Clients: r.clients(), Username: cur.Name(), SocketId: m.Id().String(),
		})
		return
	}
	m.SetName(username)
	r.members = append(r.members, m)
	clientsGauge.Inc()
	resp := api.JoinedResponse{Clients: r.clients(), Username: username, SocketId: m.Id().String()}
	for _, peer := range r.members {
		peer.Notify(api.Joined, resp)
	}
	r.log.Debug().Msgf("%s joined (%d members)", username, len(r.members))
	if len(r.members) < 2 {
		return
	}
	// late-joiner catch-up: the first member by join order is asked to
	// push its buffer; the advisory server copy goes out right away
	r.members[0].Notify(api.SyncRequest, api.SyncRequestNotice{SocketId: m.Id().String()})
	if r.code != "" {
		m.Notify(api.SyncCode, api.SyncCodeRequest{
			Code: r.code, SocketId: m.Id().String(), Language: r.language,
		})
	}
}

func (r *Room) leave(m Member) {
	if r.member(m.Id().String()) == nil {
		return
	}
	r.voiceLeave(m)
	r.remove(m)
	clientsGauge.Dec()
	notice := api.DisconnectedNotice{SocketId: m.Id().String(), Username: m.Name()}
	for _, peer := range r.members {
		peer.Notify(api.Disconnected, notice)
	}
	r.log.Debug().Msgf("%s left (%d members)", m.Name(), len(r.members))
}

func (r *Room) codeChange(m Member, rq *api.CodeChangeRequest) {
	r.code, r.language = rq.Code, rq.Language
	notice := api.CodeChangeNotice{Code: rq.Code, Language: rq.Language}
	for _, peer := range r.members {
		if peer.Id() != m.Id() {
			peer.Notify(api.CodeChange, notice)
		}
	}
}

// syncCode forwards a member's buffer to exactly the named newcomer.
func (r *Room) syncCode(rq *api.SyncCodeRequest) {
	if target := r.member(rq.SocketId); target != nil {
		target.Notify(api.SyncCode, *rq)
	}
}

func (r *Room) getDocument(m Member) {
	content, ops := r.hub.docs.Snapshot(r.id)
	m.Notify(api.LoadDocument, api.LoadDocumentResponse{
		Content: content, Ops: ops, Clients: r.clients(),
	})
}

func (r *Room) docChange(m Member, rq *api.DocChangeRequest) {
	r.hub.docs.ApplyChange(r.id, rq.Delta)
	notice := api.DocReceiveNotice{Delta: rq.Delta}
	for _, peer := range r.members {
		if peer.Id() != m.Id() {
			peer.Notify(api.DocReceive, notice)
		}
	}
}

func (r *Room) voiceJoin(m Member, username string) {
	for _, p := range r.voice {
		if p.Id() == m.Id() {
			return
		}
	}
	notice := api.VoiceUserJoinedNotice{UserId: m.Id().String(), Username: username}
	for _, p := range r.voice {
		p.Notify(api.VoiceUserJoined, notice)
	}
	r.voice = append(r.voice, m)
	r.log.Debug().Msgf("%s joined voice (%d participants)", username, len(r.voice))
}

func (r *Room) voiceLeave(m Member) {
	idx := -1
	for i, p := range r.voice {
		if p.Id() == m.Id() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	r.voice = append(r.voice[:idx], r.voice[idx+1:]...)
	notice := api.VoiceUserLeftNotice{UserId: m.Id().String()}
	for _, p := range r.voice {
		p.Notify(api.VoiceUserLeft, notice)
	}
}

// relay forwards a payload verbatim to exactly the named connection.
// A target that already disconnected is a silent no-op: races between
// disconnect and in-flight signaling are expected.
func (r *Room) relay(peerId string, t api.PT, payload any) {
	if target := r.member(peerId); target != nil {
		target.Notify(t, payload)
	}
}

func (r *Room) member(id string) Member {
	for _, m := range r.members {
		if m.Id().String() == id {
			return m
		}
	}
	return nil
}

func (r *Room) remove(m Member) {
	for i, p := range r.members {
		if p.Id() == m.Id() {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

func (r *Room) clients() []api.ClientInfo {
	out := make([]api.ClientInfo, len(r.members))
	for i, m := range r.members {
		out[i] = api.ClientInfo{SocketId: m.Id().String(), Username: m.Name()}
	}
	return out
}
