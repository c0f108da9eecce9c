// Package http exposes the client's local control API: voice and chat
// sessions are driven and inspected over plain JSON endpoints.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/app/chat"
	"github.com/dkeye/Murmur/internal/app/voice"
	"github.com/dkeye/Murmur/internal/config"
	"github.com/dkeye/Murmur/internal/domain"
)

type Voice interface {
	Join(ctx context.Context, channelID domain.ChannelID, user domain.User) error
	Leave()
	State() voice.State
}

type Chat interface {
	Join(ctx context.Context, channelID domain.ChannelID, user domain.User) error
	Leave()
	Joined() bool
	ChannelID() domain.ChannelID
	Messages() []domain.ChatMessage
	Typing() []string
	HasMore() bool
	Send(ctx context.Context, content string) (domain.ChatMessage, error)
	Resend(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error)
	StartTyping() error
	StopTyping() error
	LoadHistory(ctx context.Context) (int, error)
	LoadOlder(ctx context.Context) (int, error)
}

type Controller struct {
	Voice Voice
	Chat  Chat
	User  domain.User
}

type channelBody struct {
	ChannelID string `json:"channelId" binding:"required"`
}

type sendBody struct {
	Content string `json:"content" binding:"required"`
}

type typingBody struct {
	IsTyping bool `json:"isTyping"`
}

type ChatView struct {
	Joined      bool                 `json:"joined"`
	ChannelID   domain.ChannelID     `json:"channelId,omitempty"`
	Messages    []domain.ChatMessage `json:"messages"`
	Typing      []string             `json:"typing"`
	TypingLabel string               `json:"typingLabel,omitempty"`
	HasMore     bool                 `json:"hasMore"`
}

func (ctl *Controller) chatView() ChatView {
	typing := ctl.Chat.Typing()
	return ChatView{
		Joined:      ctl.Chat.Joined(),
		ChannelID:   ctl.Chat.ChannelID(),
		Messages:    ctl.Chat.Messages(),
		Typing:      typing,
		TypingLabel: chat.TypingLabel(typing),
		HasMore:     ctl.Chat.HasMore(),
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, voice.ErrChannelRequired), errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNotJoined), errors.Is(err, chat.ErrNotFailed):
		return http.StatusConflict
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, voice.ErrMediaAcquisition):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

// SetupRouter binds the control API. Sessions started here live on ctx,
// not on the request that started them.
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)

	api := r.Group("/api")

	api.GET("/voice", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Voice.State())
	})
	api.POST("/voice/join", func(c *gin.Context) {
		var body channelBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := ctl.Voice.Join(ctx, domain.ChannelID(body.ChannelID), ctl.User); err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, ctl.Voice.State())
	})
	api.POST("/voice/leave", func(c *gin.Context) {
		ctl.Voice.Leave()
		c.JSON(http.StatusOK, ctl.Voice.State())
	})

	api.GET("/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.chatView())
	})
	api.POST("/chat/join", func(c *gin.Context) {
		var body channelBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := ctl.Chat.Join(ctx, domain.ChannelID(body.ChannelID), ctl.User); err != nil {
			abort(c, err)
			return
		}
		if _, err := ctl.Chat.LoadHistory(c.Request.Context()); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("channel", body.ChannelID).Msg("history unavailable")
		}
		c.JSON(http.StatusOK, ctl.chatView())
	})
	api.POST("/chat/leave", func(c *gin.Context) {
		ctl.Chat.Leave()
		c.JSON(http.StatusOK, ctl.chatView())
	})
	api.GET("/chat/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Chat.Messages())
	})
	api.POST("/chat/messages", func(c *gin.Context) {
		var body sendBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msg, err := ctl.Chat.Send(c.Request.Context(), body.Content)
		if err != nil {
			if errors.Is(err, chat.ErrDeliveryFailed) {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "data": msg})
				return
			}
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": msg})
	})
	api.POST("/chat/messages/:id/resend", func(c *gin.Context) {
		msg, err := ctl.Chat.Resend(c.Request.Context(), domain.MessageID(c.Param("id")))
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": msg})
	})
	api.POST("/chat/history/older", func(c *gin.Context) {
		n, err := ctl.Chat.LoadOlder(c.Request.Context())
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"loaded": n, "hasMore": ctl.Chat.HasMore()})
	})
	api.GET("/chat/typing", func(c *gin.Context) {
		typing := ctl.Chat.Typing()
		c.JSON(http.StatusOK, gin.H{"typing": typing, "label": chat.TypingLabel(typing)})
	})
	api.POST("/chat/typing", func(c *gin.Context) {
		var body typingBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		toggle := ctl.Chat.StopTyping
		if body.IsTyping {
			toggle = ctl.Chat.StartTyping
		}
		if err := toggle(); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
