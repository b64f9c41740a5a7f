package rtc

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/syncpad/syncpad/pkg/api"
	"github.com/syncpad/syncpad/pkg/logger"
)

type fakeSession struct {
	mu         sync.Mutex
	remote     json.RawMessage
	candidates []json.RawMessage
	closed     bool
}

func (f *fakeSession) CreateOffer() (json.RawMessage, error) {
	return json.RawMessage(`{"type":"offer","sdp":"v=0 offer"}`), nil
}

func (f *fakeSession) CreateAnswer() (json.RawMessage, error) {
	return json.RawMessage(`{"type":"answer","sdp":"v=0 answer"}`), nil
}

func (f *fakeSession) SetRemoteDescription(sdp json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = sdp
	return nil
}

func (f *fakeSession) AddICECandidate(candidate json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakeSession) OnIceCandidate(func(candidate json.RawMessage)) {}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) applied() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates)
}

type fakeSignaler struct {
	mu  sync.Mutex
	out []api.Out
}

func (f *fakeSignaler) Send(t api.PT, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, api.Out{T: t, Payload: payload})
}

func (f *fakeSignaler) sent(t api.PT) []api.Out {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Out
	for _, p := range f.out {
		if p.T == t {
			out = append(out, p)
		}
	}
	return out
}

func testManager() (*Manager, *fakeSignaler, map[string]*fakeSession) {
	sig := &fakeSignaler{}
	sessions := map[string]*fakeSession{}
	var n int
	m := &Manager{
		links:    make(map[string]*Link),
		sig:      sig,
		username: "me",
		log:      logger.New(false),
	}
	m.newSession = func() (Session, error) {
		s := &fakeSession{}
		sessions[string(rune('a'+n))] = s
		n++
		return s, nil
	}
	return m, sig, sessions
}

func offer() json.RawMessage  { return json.RawMessage(`{"type":"offer","sdp":"v=0 remote"}`) }
func answer() json.RawMessage { return json.RawMessage(`{"type":"answer","sdp":"v=0 remote"}`) }
func cand(n string) json.RawMessage {
	return json.RawMessage(`{"candidate":"candidate:` + n + ` 1 udp 1 127.0.0.1 3478 typ host"}`)
}

func TestLinkCandidateQueueFlushedAfterRemote(t *testing.T) {
	sess := &fakeSession{}
	l := newLink("p1", "bob", sess, logger.New(false))

	if _, err := l.Offer(); err != nil {
		t.Fatal(err)
	}
	if err := l.AddCandidate(cand("1")); err != nil {
		t.Fatal(err)
	}
	if err := l.AddCandidate(cand("2")); err != nil {
		t.Fatal(err)
	}
	if sess.applied() != 0 {
		t.Fatal("candidates applied before the remote description")
	}
	if err := l.HandleAnswer(answer()); err != nil {
		t.Fatal(err)
	}
	if sess.applied() != 2 {
		t.Fatalf("flushed %d candidates, want 2", sess.applied())
	}
	// once the remote description is in, candidates apply directly
	if err := l.AddCandidate(cand("3")); err != nil {
		t.Fatal(err)
	}
	if sess.applied() != 3 {
		t.Fatalf("late candidate not applied, have %d", sess.applied())
	}
}

func TestLinkStaleAnswerIgnored(t *testing.T) {
	sess := &fakeSession{}
	l := newLink("p1", "bob", sess, logger.New(false))

	// no local offer pending yet
	if err := l.HandleAnswer(answer()); err != nil {
		t.Fatalf("stale answer must be a no-op, got %v", err)
	}
	if sess.remote != nil {
		t.Fatal("stale answer applied as remote description")
	}

	if _, err := l.Offer(); err != nil {
		t.Fatal(err)
	}
	if err := l.HandleAnswer(answer()); err != nil {
		t.Fatal(err)
	}
	// the round is done, a second answer changes nothing
	sess.remote = nil
	if err := l.HandleAnswer(answer()); err != nil {
		t.Fatal(err)
	}
	if sess.remote != nil {
		t.Fatal("duplicate answer re-applied")
	}
}

func TestLinkClosedIsTerminal(t *testing.T) {
	sess := &fakeSession{}
	l := newLink("p1", "bob", sess, logger.New(false))
	l.Close()
	if !sess.closed {
		t.Fatal("session not closed")
	}
	if _, err := l.Offer(); err == nil {
		t.Error("offer on a closed link succeeded")
	}
	if err := l.AddCandidate(cand("1")); err != nil {
		t.Errorf("candidate on a closed link must be a silent no-op, got %v", err)
	}
	if sess.applied() != 0 {
		t.Error("candidate applied to a closed session")
	}
}

func TestManagerOffersToAnnouncedPeers(t *testing.T) {
	m, sig, _ := testManager()

	if err := m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p2", Username: "carol"}); err != nil {
		t.Fatal(err)
	}

	offers := sig.sent(api.VoiceOffer)
	if len(offers) != 2 {
		t.Fatalf("sent %d offers, want 2", len(offers))
	}
	p := offers[0].Payload.(api.VoiceOfferPayload)
	if p.PeerId != "p1" || p.Username != "me" {
		t.Errorf("offer misaddressed: %+v", p)
	}
	if len(m.Peers()) != 2 {
		t.Errorf("mesh has %d links, want 2", len(m.Peers()))
	}

	// the announcement can race a retry, the live link wins
	if err := m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if len(sig.sent(api.VoiceOffer)) != 2 {
		t.Error("duplicate announcement produced another offer")
	}
}

func TestManagerAnswersIncomingOffer(t *testing.T) {
	m, sig, sessions := testManager()

	if err := m.HandleOffer(api.VoiceOfferPayload{Offer: offer(), PeerId: "p1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	answers := sig.sent(api.VoiceAnswer)
	if len(answers) != 1 {
		t.Fatalf("sent %d answers, want 1", len(answers))
	}
	if answers[0].Payload.(api.VoiceAnswerPayload).PeerId != "p1" {
		t.Error("answer misaddressed")
	}
	if sessions["a"].remote == nil {
		t.Error("remote offer never applied")
	}
	if len(sig.sent(api.VoiceOffer)) != 0 {
		t.Error("the answering side must not offer back")
	}
}

func TestManagerDropsUnknownPeerSignals(t *testing.T) {
	m, _, _ := testManager()
	if err := m.HandleAnswer(api.VoiceAnswerPayload{Answer: answer(), PeerId: "ghost"}); err != nil {
		t.Errorf("unknown-peer answer must be a no-op, got %v", err)
	}
	if err := m.HandleCandidate(api.IceCandidatePayload{Candidate: cand("1"), PeerId: "ghost"}); err != nil {
		t.Errorf("unknown-peer candidate must be a no-op, got %v", err)
	}
}

func TestManagerUserLeftClosesLink(t *testing.T) {
	m, _, sessions := testManager()
	if err := m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}

	m.HandleUserLeft(api.VoiceUserLeftNotice{UserId: "p1"})
	if !sessions["a"].closed {
		t.Fatal("session left open after the peer left")
	}
	if len(m.Peers()) != 0 {
		t.Fatal("link survived the peer leaving")
	}

	// late candidates for the departed peer vanish without effect
	if err := m.HandleCandidate(api.IceCandidatePayload{Candidate: cand("9"), PeerId: "p1"}); err != nil {
		t.Fatal(err)
	}
	if sessions["a"].applied() != 0 {
		t.Fatal("candidate resurrected a closed link")
	}
}

func TestManagerRejoinGetsFreshLink(t *testing.T) {
	m, sig, sessions := testManager()
	if err := m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	m.HandleUserLeft(api.VoiceUserLeftNotice{UserId: "p1"})

	if err := m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p1", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if len(sig.sent(api.VoiceOffer)) != 2 {
		t.Fatal("rejoin did not restart signaling")
	}
	if len(sessions) != 2 {
		t.Fatalf("rejoin reused a session, have %d", len(sessions))
	}
	if !sessions["a"].closed || sessions["b"].closed {
		t.Error("wrong session closed across the rejoin")
	}
}

// meshPort loops one manager's outgoing signaling straight into the
// addressed manager, rewriting PeerId to the sender the way the relay
// does.
type meshPort struct {
	self     string
	t        *testing.T
	managers map[string]*Manager
}

func (p *meshPort) Send(t api.PT, payload any) {
	switch t {
	case api.VoiceOffer:
		pl := payload.(api.VoiceOfferPayload)
		target := p.managers[pl.PeerId]
		pl.PeerId = p.self
		if err := target.HandleOffer(pl); err != nil {
			p.t.Errorf("offer %s -> %v: %v", p.self, pl, err)
		}
	case api.VoiceAnswer:
		pl := payload.(api.VoiceAnswerPayload)
		target := p.managers[pl.PeerId]
		pl.PeerId = p.self
		if err := target.HandleAnswer(pl); err != nil {
			p.t.Errorf("answer %s -> %v: %v", p.self, pl, err)
		}
	}
}

func TestThreePartyMeshSettles(t *testing.T) {
	managers := map[string]*Manager{}
	names := []string{"A", "B", "C"}
	for _, name := range names {
		m := &Manager{
			links:    make(map[string]*Link),
			sig:      &meshPort{self: name, t: t, managers: managers},
			username: name,
			log:      logger.New(false),
		}
		m.newSession = func() (Session, error) { return &fakeSession{}, nil }
		managers[name] = m
	}

	// B joins voice after A, C after both: each existing participant
	// is announced the newcomer and offers toward it
	if err := managers["A"].HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "B", Username: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := managers["A"].HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "C", Username: "C"}); err != nil {
		t.Fatal(err)
	}
	if err := managers["B"].HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "C", Username: "C"}); err != nil {
		t.Fatal(err)
	}

	pairs := [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}}
	for _, pair := range pairs {
		if !managers[pair[0]].Stable(pair[1]) {
			t.Errorf("link %s-%s not stable on %s", pair[0], pair[1], pair[0])
		}
		if !managers[pair[1]].Stable(pair[0]) {
			t.Errorf("link %s-%s not stable on %s", pair[0], pair[1], pair[1])
		}
	}
	for _, name := range names {
		if n := len(managers[name].Peers()); n != 2 {
			t.Errorf("%s holds %d links, want 2", name, n)
		}
	}
}

func TestManagerLeaveTearsDownMesh(t *testing.T) {
	m, _, sessions := testManager()
	_ = m.HandleUserJoined(api.VoiceUserJoinedNotice{UserId: "p1", Username: "bob"})
	_ = m.HandleOffer(api.VoiceOfferPayload{Offer: offer(), PeerId: "p2", Username: "carol"})

	m.Leave()
	if len(m.Peers()) != 0 {
		t.Fatal("links survived Leave")
	}
	for id, s := range sessions {
		if !s.closed {
			t.Errorf("session %s left open", id)
		}
	}
}
