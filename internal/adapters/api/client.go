// Package api is the request/response client for channel message history.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

var ErrRequestFailed = errors.New("api request failed")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrRequestFailed }

// Message is a stored message as served by the API and the relay.
type Message struct {
	ID        string           `json:"id"`
	ChannelID string           `json:"channelId"`
	Content   string           `json:"content"`
	User      *protocol.Author `json:"user,omitempty"`
	UserID    string           `json:"userId,omitempty"`
	Username  string           `json:"username,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	SocketID  string           `json:"socketId,omitempty"`
}

func (m Message) Domain() domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:             domain.MessageID(m.ID),
		ChannelID:      domain.ChannelID(m.ChannelID),
		AuthorID:       domain.UserID(m.UserID),
		AuthorName:     m.Username,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Status:         domain.StatusDelivered,
		OriginClientID: m.SocketID,
	}
	if m.User != nil {
		if m.User.ID != "" {
			msg.AuthorID = domain.UserID(m.User.ID)
		}
		if m.User.Username != "" {
			msg.AuthorName = m.User.Username
		}
	}
	return msg
}

// Page is the paginated shape; servers may also return a bare array.
type Page struct {
	Items      []Message `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type Client struct {
	base string
	http *http.Client
}

var _ core.ChatAPI = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func messagesPath(channelID domain.ChannelID) string {
	return "/channels/" + url.PathEscape(string(channelID)) + "/messages"
}

func (c *Client) FetchMessages(ctx context.Context, channelID domain.ChannelID, cursor string) (core.MessagePage, error) {
	path := messagesPath(channelID)
	if cursor != "" {
		path += "?" + url.Values{"cursor": {cursor}}.Encode()
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return core.MessagePage{}, err
	}

	var page Page
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &page.Items)
	} else {
		err = json.Unmarshal(raw, &page)
	}
	if err != nil {
		return core.MessagePage{}, fmt.Errorf("decode messages: %w", err)
	}

	out := core.MessagePage{NextCursor: page.NextCursor, Items: make([]domain.ChatMessage, 0, len(page.Items))}
	for _, m := range page.Items {
		out.Items = append(out.Items, m.Domain())
	}
	return out, nil
}

func (c *Client) PostMessage(ctx context.Context, channelID domain.ChannelID, req core.PostMessageRequest) (domain.ChatMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	raw, err := c.do(ctx, http.MethodPost, messagesPath(channelID), body)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	var wrapped struct {
		Data *Message `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("decode message: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data.Domain(), nil
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("decode message: %w", err)
	}
	return m.Domain(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Str("module", "api").Str("method", method).Str("path", path).Err(err).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	log.Debug().Str("module", "api").Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request")
	return raw, nil
}
