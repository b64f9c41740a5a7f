// Package session binds one websocket connection to its identity in a
// room: a connection-unique id and a display name. Display names are
// not unique, collisions are a UI concern.
package session

import (
	"github.com/goccy/go-json"

	"github.com/syncpad/syncpad/pkg/api"
	"github.com/syncpad/syncpad/pkg/com"
	"github.com/syncpad/syncpad/pkg/logger"
)

type Session struct {
	id   com.Uid
	name string
	sock *com.WS
	log  *logger.Logger
}

func New(sock *com.WS, log *logger.Logger) *Session {
	id := com.NewUid()
	lg := log.Extend(log.With().Str("cid", id.Short()))
	lg.Debug().Str(logger.DirectionField, "→").Msg("Connect")
	return &Session{id: id, sock: sock, log: lg}
}

func (s *Session) Id() com.Uid      { return s.id }
func (s *Session) Name() string     { return s.name }
func (s *Session) SetName(n string) { s.name = n }
func (s *Session) String() string   { return s.id.String() }

func (s *Session) Log() *logger.Logger { return s.log }

// OnPacket registers the single handler for incoming packets.
// Transport errors terminate the read loop and surface as Wait returning.
func (s *Session) OnPacket(fn func(in api.In)) {
	s.sock.OnMessage = func(message []byte, err error) {
		if err != nil {
			return
		}
		var in api.In
		if err := json.Unmarshal(message, &in); err != nil {
			s.log.Error().Err(err).Msg("malformed packet")
			return
		}
		s.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", in.T)
		fn(in)
	}
}

// Notify sends a packet and goes further, fire-and-forget.
func (s *Session) Notify(t api.PT, payload any) {
	s.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	data, err := json.Marshal(api.Out{T: t, Payload: payload})
	if err != nil {
		s.log.Error().Err(err).Msgf("%v marshal fail", t)
		return
	}
	s.sock.Write(data)
}

// Listen starts the socket pumps once the packet handler is in place.
func (s *Session) Listen() { s.sock.Listen() }

func (s *Session) Disconnect() {
	s.sock.Close()
	s.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

// Wait blocks until the connection is torn down.
func (s *Session) Wait() { <-s.sock.Done }
