package relayserver

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

func channelID(id string) domain.ChannelID { return domain.ChannelID(id) }

func (s *Server) handleChat(m *Member, msg protocol.Message) {
	switch p := msg.(type) {
	case *protocol.ChannelJoinPayload:
		m.SetIdentity(domain.UserID(p.UserID), p.Username)
		s.enter(m, p.ChannelID)
	case *protocol.ChannelLeavePayload:
		if string(m.Room()) == p.ChannelID {
			s.exit(m)
		}
	case *protocol.SendMessage:
		s.handleSend(m, p)
	case *protocol.Typing:
		room, ok := s.roomOf(m, p.ChannelID)
		if !ok {
			return
		}
		s.publish(room, m.SID, &protocol.UserTypingPayload{
			ChannelID: p.ChannelID,
			UserID:    p.UserID,
			Username:  p.Username,
			IsTyping:  p.IsTyping,
		})
	default:
		log.Warn().Str("module", "relay.chat").Str("event", string(msg.Event())).Msg("unexpected event")
	}
}

func (s *Server) handleSend(m *Member, p *protocol.SendMessage) {
	uid := domain.UserID(p.UserID)
	if !s.Limiter.Allow(uid) {
		log.Warn().Str("module", "relay.chat").Str("user", p.UserID).Msg("rate limit exceeded")
		return
	}
	s.Post(channelID(p.ChannelID), protocol.Author{ID: p.UserID, Username: p.Username}, p.Content, m.SID)
}

// Post stores a message and broadcasts it to the whole channel, sender
// included; clients drop their own echo by socketId.
func (s *Server) Post(id domain.ChannelID, author protocol.Author, content, socketID string) protocol.NewMessage {
	msg := s.Store.Add(id, author, content, socketID)
	if room, ok := s.Rooms.Get(protocol.NamespaceChat, id); ok {
		s.publish(room, "", &msg)
	}
	log.Debug().Str("module", "relay.chat").Str("channel", string(id)).Str("message", msg.ID).Msg("message stored")
	return msg
}
