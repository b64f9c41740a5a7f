package rtc

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/syncpad/syncpad/pkg/logger"
)

type linkState uint8

const (
	stateNew linkState = iota
	stateHaveLocalOffer
	stateHaveRemoteOffer
	stateStable
	stateClosed
)

func (s linkState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateHaveLocalOffer:
		return "have-local-offer"
	case stateHaveRemoteOffer:
		return "have-remote-offer"
	case stateStable:
		return "stable"
	case stateClosed:
		return "closed"
	}
	return "invalid"
}

// Link is the signaling state of one remote participant. Candidates
// arriving before the remote description are queued and applied once it
// lands. A closed link never comes back; the peer gets a fresh one.
type Link struct {
	peerId   string
	username string

	sess      Session
	state     linkState
	remoteSet bool
	pending   []json.RawMessage
	log       *logger.Logger
}

func newLink(peerId, username string, sess Session, log *logger.Logger) *Link {
	return &Link{
		peerId:   peerId,
		username: username,
		sess:     sess,
		log:      log.Extend(log.With().Str("peer", peerId)),
	}
}

func (l *Link) Username() string { return l.username }

// Offer generates the local offer; the link then waits for the answer.
func (l *Link) Offer() (json.RawMessage, error) {
	if l.state != stateNew {
		return nil, fmt.Errorf("offer in state %v", l.state)
	}
	sdp, err := l.sess.CreateOffer()
	if err != nil {
		return nil, err
	}
	l.state = stateHaveLocalOffer
	return sdp, nil
}

// HandleOffer ingests the remote offer and produces the local answer.
func (l *Link) HandleOffer(sdp json.RawMessage) (json.RawMessage, error) {
	if l.state != stateNew {
		return nil, fmt.Errorf("remote offer in state %v", l.state)
	}
	if err := l.sess.SetRemoteDescription(sdp); err != nil {
		return nil, err
	}
	l.state = stateHaveRemoteOffer
	l.remoteSet = true
	l.flushPending()
	answer, err := l.sess.CreateAnswer()
	if err != nil {
		return nil, err
	}
	l.state = stateStable
	return answer, nil
}

// HandleAnswer completes the offer round. An answer in any other state
// is stale and ignored.
func (l *Link) HandleAnswer(sdp json.RawMessage) error {
	if l.state != stateHaveLocalOffer {
		l.log.Warn().Msgf("stale answer in state %v, dropped", l.state)
		return nil
	}
	if err := l.sess.SetRemoteDescription(sdp); err != nil {
		return err
	}
	l.state = stateStable
	l.remoteSet = true
	l.flushPending()
	return nil
}

func (l *Link) AddCandidate(candidate json.RawMessage) error {
	if l.state == stateClosed {
		return nil
	}
	if !l.remoteSet {
		l.pending = append(l.pending, candidate)
		return nil
	}
	return l.sess.AddICECandidate(candidate)
}

func (l *Link) flushPending() {
	for _, c := range l.pending {
		if err := l.sess.AddICECandidate(c); err != nil {
			l.log.Warn().Err(err).Msg("queued candidate rejected")
		}
	}
	l.pending = nil
}

func (l *Link) Close() {
	if l.state == stateClosed {
		return
	}
	l.state = stateClosed
	l.pending = nil
	if err := l.sess.Close(); err != nil {
		l.log.Error().Err(err).Msg("peer connection close failed")
	}
}

func (l *Link) Closed() bool { return l.state == stateClosed }
