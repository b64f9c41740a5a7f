package main

import (
	goflag "flag"
	"net/url"

	flag "github.com/spf13/pflag"

	"github.com/syncpad/syncpad/pkg/api"
	"github.com/syncpad/syncpad/pkg/com"
	"github.com/syncpad/syncpad/pkg/config"
	"github.com/syncpad/syncpad/pkg/logger"
	"github.com/syncpad/syncpad/pkg/os"
	"github.com/syncpad/syncpad/pkg/rtc"
	"github.com/syncpad/syncpad/pkg/session"
)

var Version = "?"

// relay adapts the session's packet sender to the voice manager.
type relay struct {
	sess *session.Session
}

func (r relay) Send(t api.PT, payload any) { r.sess.Notify(t, payload) }

func main() {
	var conf config.Config
	if err := config.LoadConfigEnv(&conf); err != nil {
		panic(err)
	}
	server := flag.StringP("server", "s", "localhost:8000", "Relay address")
	room := flag.StringP("room", "r", "", "Room to join")
	name := flag.StringP("name", "n", "guest", "Display name")
	flag.BoolVarP(&conf.Debug, "debug", "v", conf.Debug, "Verbose logging")
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "c", false)
	log.Info().Msgf("version %s", Version)
	if *room == "" {
		log.Fatal().Msg("a room id is required, see --room")
	}

	address := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	sock, err := com.NewClient(address, log)
	if err != nil {
		log.Fatal().Err(err).Msgf("couldn't reach the relay at %v", address.String())
	}
	sess := session.New(sock, log)

	factory, err := rtc.NewApiFactory(conf.Webrtc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc init failed")
	}
	voice := rtc.NewManager(factory, relay{sess}, *name, log)

	sess.OnPacket(func(in api.In) {
		var err error
		switch in.T {
		case api.Joined:
			if p, e := api.UnwrapChecked[api.JoinedResponse](in.Payload); e != nil {
				err = e
			} else {
				log.Info().Msgf("%s is in (%d members)", p.Username, len(p.Clients))
			}
		case api.Disconnected:
			if p, e := api.UnwrapChecked[api.DisconnectedNotice](in.Payload); e != nil {
				err = e
			} else {
				log.Info().Msgf("%s left", p.Username)
			}
		case api.VoiceUserJoined:
			var p *api.VoiceUserJoinedNotice
			if p, err = api.UnwrapChecked[api.VoiceUserJoinedNotice](in.Payload); err == nil {
				err = voice.HandleUserJoined(*p)
			}
		case api.VoiceOffer:
			var p *api.VoiceOfferPayload
			if p, err = api.UnwrapChecked[api.VoiceOfferPayload](in.Payload); err == nil {
				err = voice.HandleOffer(*p)
			}
		case api.VoiceAnswer:
			var p *api.VoiceAnswerPayload
			if p, err = api.UnwrapChecked[api.VoiceAnswerPayload](in.Payload); err == nil {
				err = voice.HandleAnswer(*p)
			}
		case api.IceCandidate:
			var p *api.IceCandidatePayload
			if p, err = api.UnwrapChecked[api.IceCandidatePayload](in.Payload); err == nil {
				err = voice.HandleCandidate(*p)
			}
		case api.VoiceUserLeft:
			var p *api.VoiceUserLeftNotice
			if p, err = api.UnwrapChecked[api.VoiceUserLeftNotice](in.Payload); err == nil {
				voice.HandleUserLeft(*p)
			}
		}
		if err != nil {
			log.Error().Err(err).Msgf("%v handling failed", in.T)
		}
	})
	sess.Listen()
	sess.Notify(api.Join, api.JoinRequest{RoomId: *room, Username: *name})
	sess.Notify(api.VoiceJoin, api.VoiceJoinRequest{RoomId: *room, Username: *name})

	dropped := make(chan struct{})
	go func() {
		sess.Wait()
		close(dropped)
	}()
	select {
	case <-os.ExpectTermination():
	case <-dropped:
		log.Info().Msg("the relay hung up")
	}
	voice.Leave()
	sess.Disconnect()
}
