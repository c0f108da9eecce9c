package core

import (
	"context"

	"github.com/dkeye/Murmur/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_chat_api.go -package=mocks github.com/dkeye/Murmur/internal/core ChatAPI

// PostMessageRequest is the body of a message submission.
type PostMessageRequest struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Username  string `json:"username,omitempty"`
	Content   string `json:"content"`
	SocketID  string `json:"socketId,omitempty"`
}

// MessagePage is one page of history, newest first as served.
type MessagePage struct {
	Items      []domain.ChatMessage
	NextCursor string
}

// ChatAPI is the request/response data-access collaborator.
type ChatAPI interface {
	FetchMessages(ctx context.Context, channelID domain.ChannelID, cursor string) (MessagePage, error)
	PostMessage(ctx context.Context, channelID domain.ChannelID, req PostMessageRequest) (domain.ChatMessage, error)
}
