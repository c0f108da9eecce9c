package protocol

import (
	"time"

	"github.com/pion/webrtc/v4"
)

type Hello struct {
	ID string `json:"id" validate:"required"`
}

// Membership is shared by chat and voice join/leave frames.
type Membership struct {
	ChannelID string `json:"channelId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username,omitempty"`
}

type (
	ChannelJoinPayload  struct{ Membership }
	ChannelLeavePayload struct{ Membership }
	VoiceJoinPayload    struct{ Membership }
	VoiceLeavePayload   struct{ Membership }
)

type Author struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

// NewMessage is the broadcast of a stored chat message.
type NewMessage struct {
	ID        string    `json:"id" validate:"required"`
	ChannelID string    `json:"channelId" validate:"required"`
	Content   string    `json:"content"`
	User      Author    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	// SocketID is the relay connection that originated the message.
	SocketID string `json:"socketId,omitempty"`
}

type SendMessage struct {
	ChannelID string `json:"channelId" validate:"required"`
	Content   string `json:"content" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username,omitempty"`
}

type Typing struct {
	ChannelID string `json:"channelId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username,omitempty"`
	IsTyping  bool   `json:"isTyping"`
}

type UserTypingPayload struct {
	ChannelID string `json:"channelId,omitempty"`
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username,omitempty"`
	IsTyping  bool   `json:"isTyping"`
}

// VoiceUser is one roster entry; SocketID is the connection-scoped identity.
type VoiceUser struct {
	SocketID string `json:"socketId" validate:"required"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type Roster struct {
	ChannelID string      `json:"channelId" validate:"required"`
	Users     []VoiceUser `json:"users" validate:"dive"`
}

type UserJoined struct {
	ChannelID string    `json:"channelId,omitempty"`
	User      VoiceUser `json:"user"`
}

type UserLeft struct {
	ChannelID string `json:"channelId,omitempty"`
	UserID    string `json:"userId" validate:"required_without=SocketID"`
	SocketID  string `json:"socketId,omitempty"`
}

type Speaking struct {
	ChannelID  string `json:"channelId" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
	IsSpeaking bool   `json:"isSpeaking"`
}

type UserSpeaking struct {
	ChannelID  string `json:"channelId,omitempty"`
	UserID     string `json:"userId" validate:"required"`
	IsSpeaking bool   `json:"isSpeaking"`
}

// Signal addressing: To is set by the sender, From is stamped by the relay.
type Route struct {
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
}

type Offer struct {
	Route
	ChannelID string                    `json:"channelId,omitempty"`
	Offer     webrtc.SessionDescription `json:"offer"`
}

type Answer struct {
	Route
	Answer webrtc.SessionDescription `json:"answer"`
}

type Candidate struct {
	Route
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (*Hello) Event() Event               { return Connected }
func (*ChannelJoinPayload) Event() Event  { return ChannelJoin }
func (*ChannelLeavePayload) Event() Event { return ChannelLeave }
func (*NewMessage) Event() Event          { return MessageNew }
func (*SendMessage) Event() Event         { return MessageSend }
func (*Typing) Event() Event              { return MessageTyping }
func (*UserTypingPayload) Event() Event   { return UserTyping }
func (*VoiceJoinPayload) Event() Event    { return VoiceJoin }
func (*VoiceLeavePayload) Event() Event   { return VoiceLeave }
func (*Roster) Event() Event              { return VoiceUsers }
func (*UserJoined) Event() Event          { return VoiceUserJoined }
func (*UserLeft) Event() Event            { return VoiceUserLeft }
func (*Speaking) Event() Event            { return VoiceSpeaking }
func (*UserSpeaking) Event() Event        { return VoiceUserSpeaking }
func (*Offer) Event() Event               { return WebRTCOffer }
func (*Answer) Event() Event              { return WebRTCAnswer }
func (*Candidate) Event() Event           { return WebRTCCandidate }
