// Package rtc manages the client-side WebRTC voice mesh: one peer
// connection per remote participant, driven by the relay's signaling
// packets. The side that is told about a newcomer makes the offer, the
// newcomer only answers, so two peers never offer to each other.
package rtc

import (
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v3"

	"github.com/syncpad/syncpad/pkg/config"
	"github.com/syncpad/syncpad/pkg/logger"
)

type ApiFactory struct {
	api  *webrtc.API
	conf webrtc.Configuration
}

func NewApiFactory(conf config.Webrtc, log *logger.Logger) (*ApiFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	customLogger := logger.NewPionLogger(log, conf.LogLevel)
	s := webrtc.SettingEngine{LoggerFactory: customLogger}

	c := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	for _, server := range conf.IceServers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return &ApiFactory{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)),
		conf: c,
	}, nil
}

// NewSession opens a fresh peer connection with a bidirectional audio
// transceiver already attached, so the generated SDP carries an audio
// media section.
func (f *ApiFactory) NewSession() (Session, error) {
	pc, err := f.api.NewPeerConnection(f.conf)
	if err != nil {
		return nil, err
	}
	if _, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return &pionSession{pc: pc}, nil
}

// Session is the signaling surface of one peer connection. The local
// description is set as a side effect of CreateOffer and CreateAnswer.
type Session interface {
	CreateOffer() (json.RawMessage, error)
	CreateAnswer() (json.RawMessage, error)
	SetRemoteDescription(sdp json.RawMessage) error
	AddICECandidate(candidate json.RawMessage) error
	OnIceCandidate(fn func(candidate json.RawMessage))
	Close() error
}

type pionSession struct {
	pc *webrtc.PeerConnection
}

func (s *pionSession) CreateOffer() (json.RawMessage, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = s.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (s *pionSession) CreateAnswer() (json.RawMessage, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err = s.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

func (s *pionSession) SetRemoteDescription(sdp json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return err
	}
	return s.pc.SetRemoteDescription(desc)
}

func (s *pionSession) AddICECandidate(candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return err
	}
	return s.pc.AddICECandidate(init)
}

func (s *pionSession) OnIceCandidate(fn func(candidate json.RawMessage)) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(data)
	})
}

func (s *pionSession) Close() error { return s.pc.Close() }
