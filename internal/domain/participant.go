package domain

// ParticipantID is the connection-scoped identity the relay assigns.
// It changes on every reconnect, unlike UserID.
type ParticipantID string

// Participant is a member of a voice channel as seen by the local client.
type Participant struct {
	ID          ParticipantID
	UserID      UserID
	DisplayName string
}

// Label returns the best human readable name for the participant.
func (p Participant) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.UserID != "" {
		return string(p.UserID)
	}
	id := string(p.ID)
	if len(id) > 5 {
		return id[:5]
	}
	return id
}

type ChannelID string
