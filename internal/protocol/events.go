// Package protocol defines the relay wire format: one JSON envelope
// {"event": name, "data": payload} with a typed payload per event name.
package protocol

// Event is the discriminator carried by every envelope.
type Event string

// Namespaces the relay multiplexes.
const (
	NamespaceChat  = "chat"
	NamespaceVoice = "voice"
)

const (
	// Connected is sent by the relay first on every connection.
	Connected Event = "connected"

	ChannelJoin   Event = "channel:join"
	ChannelLeave  Event = "channel:leave"
	MessageNew    Event = "message:new"
	MessageSend   Event = "message:send"
	MessageTyping Event = "message:typing"
	UserTyping    Event = "user:typing"

	VoiceJoin         Event = "voice:join"
	VoiceLeave        Event = "voice:leave"
	VoiceUsers        Event = "voice:users"
	VoiceUserJoined   Event = "voice:userJoined"
	VoiceUserLeft     Event = "voice:userLeft"
	VoiceSpeaking     Event = "voice:speaking"
	VoiceUserSpeaking Event = "voice:userSpeaking"

	WebRTCOffer     Event = "webrtc:offer"
	WebRTCAnswer    Event = "webrtc:answer"
	WebRTCCandidate Event = "webrtc:candidate"
)

// Message is implemented by every payload type.
type Message interface {
	Event() Event
}

var registry = map[Event]func() Message{
	Connected:         func() Message { return &Hello{} },
	ChannelJoin:       func() Message { return &ChannelJoinPayload{} },
	ChannelLeave:      func() Message { return &ChannelLeavePayload{} },
	MessageNew:        func() Message { return &NewMessage{} },
	MessageSend:       func() Message { return &SendMessage{} },
	MessageTyping:     func() Message { return &Typing{} },
	UserTyping:        func() Message { return &UserTypingPayload{} },
	VoiceJoin:         func() Message { return &VoiceJoinPayload{} },
	VoiceLeave:        func() Message { return &VoiceLeavePayload{} },
	VoiceUsers:        func() Message { return &Roster{} },
	VoiceUserJoined:   func() Message { return &UserJoined{} },
	VoiceUserLeft:     func() Message { return &UserLeft{} },
	VoiceSpeaking:     func() Message { return &Speaking{} },
	VoiceUserSpeaking: func() Message { return &UserSpeaking{} },
	WebRTCOffer:       func() Message { return &Offer{} },
	WebRTCAnswer:      func() Message { return &Answer{} },
	WebRTCCandidate:   func() Message { return &Candidate{} },
}

// Known reports whether the event has a registered payload type.
func Known(e Event) bool {
	_, ok := registry[e]
	return ok
}
