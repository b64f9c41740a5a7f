package rtc

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/syncpad/syncpad/pkg/api"
	"github.com/syncpad/syncpad/pkg/logger"
)

// Signaler carries outgoing signaling packets back to the relay.
type Signaler interface {
	Send(t api.PT, payload any)
}

// Manager keeps one Link per remote voice participant. Joining N peers
// yields N links here and a full mesh overall. Safe for concurrent use:
// signaling arrives on the socket reader, candidates on pion's
// gathering goroutines. The lock is never held across Send, so an
// in-process loopback of the relay cannot deadlock it.
type Manager struct {
	mu    sync.Mutex
	links map[string]*Link

	newSession func() (Session, error)
	sig        Signaler
	username   string
	log        *logger.Logger
}

func NewManager(f *ApiFactory, sig Signaler, username string, log *logger.Logger) *Manager {
	return &Manager{
		links:      make(map[string]*Link),
		newSession: f.NewSession,
		sig:        sig,
		username:   username,
		log:        log,
	}
}

// open creates a link and wires its candidate trickle to the relay.
// Callers hold m.mu.
func (m *Manager) open(peerId, username string) (*Link, error) {
	sess, err := m.newSession()
	if err != nil {
		return nil, err
	}
	link := newLink(peerId, username, sess, m.log)
	sess.OnIceCandidate(func(candidate json.RawMessage) {
		m.sig.Send(api.IceCandidate, api.IceCandidatePayload{Candidate: candidate, PeerId: peerId})
	})
	m.links[peerId] = link
	return link, nil
}

// HandleUserJoined reacts to a newcomer announcement: the announced-to
// side makes the offer, which is what keeps the mesh glare-free.
func (m *Manager) HandleUserJoined(n api.VoiceUserJoinedNotice) error {
	m.mu.Lock()
	if link, ok := m.links[n.UserId]; ok && !link.Closed() {
		m.mu.Unlock()
		m.log.Warn().Str("peer", n.UserId).Msg("duplicate join announcement, link kept")
		return nil
	}
	link, err := m.open(n.UserId, n.Username)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	offer, err := link.Offer()
	if err != nil {
		delete(m.links, n.UserId)
		link.Close()
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	m.sig.Send(api.VoiceOffer, api.VoiceOfferPayload{Offer: offer, PeerId: n.UserId, Username: m.username})
	return nil
}

// HandleOffer answers an incoming offer. An offer over a live link
// replaces it: the far side restarted.
func (m *Manager) HandleOffer(p api.VoiceOfferPayload) error {
	m.mu.Lock()
	if old, ok := m.links[p.PeerId]; ok && !old.Closed() {
		m.log.Debug().Str("peer", p.PeerId).Msg("offer over a live link, renegotiating")
		old.Close()
	}
	link, err := m.open(p.PeerId, p.Username)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	answer, err := link.HandleOffer(p.Offer)
	if err != nil {
		delete(m.links, p.PeerId)
		link.Close()
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	m.sig.Send(api.VoiceAnswer, api.VoiceAnswerPayload{Answer: answer, PeerId: p.PeerId})
	return nil
}

func (m *Manager) HandleAnswer(p api.VoiceAnswerPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[p.PeerId]
	if !ok {
		m.log.Warn().Str("peer", p.PeerId).Msg("answer from an unknown peer, dropped")
		return nil
	}
	return link.HandleAnswer(p.Answer)
}

func (m *Manager) HandleCandidate(p api.IceCandidatePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[p.PeerId]
	if !ok {
		m.log.Warn().Str("peer", p.PeerId).Msg("candidate from an unknown peer, dropped")
		return nil
	}
	return link.AddCandidate(p.Candidate)
}

func (m *Manager) HandleUserLeft(n api.VoiceUserLeftNotice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[n.UserId]; ok {
		link.Close()
		delete(m.links, n.UserId)
	}
}

// Leave tears the whole mesh down on our own exit.
func (m *Manager) Leave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, link := range m.links {
		link.Close()
		delete(m.links, id)
	}
}

// Peers lists the remote participants with a live link.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.links))
	for id, link := range m.links {
		if !link.Closed() {
			out = append(out, id)
		}
	}
	return out
}

// Stable reports whether the link to the peer finished its offer round.
func (m *Manager) Stable(peerId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[peerId]
	return ok && link.state == stateStable
}
