package domain

import (
	"strings"
	"time"
)

type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// TempIDPrefix marks ids minted locally before the server confirms a message.
const TempIDPrefix = "temp-"

type MessageID string

// IsTemporary reports whether the id was minted locally.
func (id MessageID) IsTemporary() bool {
	return strings.HasPrefix(string(id), TempIDPrefix)
}

type ChatMessage struct {
	ID         MessageID      `json:"id"`
	ChannelID  ChannelID      `json:"channelId"`
	AuthorID   UserID         `json:"authorId,omitempty"`
	AuthorName string         `json:"authorName"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"createdAt"`
	Status     DeliveryStatus `json:"status"`
	// OriginClientID is the relay connection id of the sender, used for echo suppression.
	OriginClientID string `json:"originClientId,omitempty"`
}
