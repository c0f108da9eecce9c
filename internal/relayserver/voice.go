package relayserver

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

func (s *Server) handleVoice(m *Member, msg protocol.Message) {
	switch p := msg.(type) {
	case *protocol.VoiceJoinPayload:
		s.voiceJoin(m, p)
	case *protocol.VoiceLeavePayload:
		if string(m.Room()) != p.ChannelID {
			return
		}
		if room := s.exit(m); room != nil {
			s.announceLeft(room, m)
		}
	case *protocol.Offer:
		p.From = m.SID
		s.route(m, p.To, p)
	case *protocol.Answer:
		p.From = m.SID
		s.route(m, p.To, p)
	case *protocol.Candidate:
		p.From = m.SID
		s.route(m, p.To, p)
	case *protocol.Speaking:
		room, ok := s.roomOf(m, p.ChannelID)
		if !ok {
			return
		}
		s.publish(room, m.SID, &protocol.UserSpeaking{ChannelID: p.ChannelID, UserID: p.UserID, IsSpeaking: p.IsSpeaking})
	default:
		log.Warn().Str("module", "relay.voice").Str("event", string(msg.Event())).Msg("unexpected event")
	}
}

func (s *Server) voiceJoin(m *Member, p *protocol.VoiceJoinPayload) {
	m.SetIdentity(domain.UserID(p.UserID), p.Username)
	stayed := string(m.Room()) == p.ChannelID

	room, previous := s.enter(m, p.ChannelID)
	if previous != nil {
		s.announceLeft(previous, m)
	}
	if !stayed {
		s.publish(room, m.SID, &protocol.UserJoined{ChannelID: p.ChannelID, User: m.voiceUser()})
	}
	s.pushRoster(room)
}

func (s *Server) announceLeft(room *Room, m *Member) {
	uid, _ := m.Identity()
	s.publish(room, "", &protocol.UserLeft{ChannelID: string(room.ID), UserID: string(uid), SocketID: m.SID})
	s.pushRoster(room)
}

func (s *Server) pushRoster(room *Room) {
	s.publish(room, "", &protocol.Roster{ChannelID: string(room.ID), Users: room.Roster()})
}

// route delivers a signaling message to one voice connection.
func (s *Server) route(from *Member, to string, msg protocol.Message) {
	target, ok := s.Registry.Get(to)
	if !ok || target.Namespace != protocol.NamespaceVoice {
		log.Debug().Str("module", "relay.voice").Str("from", from.SID).Str("to", to).Str("event", string(msg.Event())).Msg("signal target gone")
		return
	}
	s.sendTo(target, msg)
}
