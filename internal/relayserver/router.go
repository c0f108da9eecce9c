package relayserver

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/config"
	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

const clientTokenKey = "client_token"

// ClientTokenMiddleware pins a token to the browser session so reconnecting
// tabs can be told apart in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "relay.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

type postMessageBody struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username"`
	Content  string `json:"content" binding:"required"`
	SocketID string `json:"socketId"`
}

type messagePage struct {
	Items      []protocol.NewMessage `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, srv *Server) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MurmurRelay", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/ws/:namespace", func(c *gin.Context) {
		srv.HandleWS(ctx, c)
	})

	r.GET("/channels/:id/messages", func(c *gin.Context) {
		limit := srv.opts.PageSize
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = min(n, srv.opts.PageSize)
		}
		items, next, err := srv.Store.Page(channelID(c.Param("id")), c.Query("cursor"), limit)
		if errors.Is(err, ErrUnknownCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, messagePage{Items: items, NextCursor: next})
	})

	r.POST("/channels/:id/messages", func(c *gin.Context) {
		var body postMessageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !srv.Limiter.Allow(domain.UserID(body.UserID)) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		msg := srv.Post(channelID(c.Param("id")), protocol.Author{ID: body.UserID, Username: body.Username}, body.Content, body.SocketID)
		c.JSON(http.StatusCreated, gin.H{"data": msg})
	})

	r.GET("/api/rooms", func(c *gin.Context) {
		rooms := srv.Rooms.List()
		slices.SortFunc(rooms, func(a, b RoomInfo) int {
			if n := strings.Compare(a.Namespace, b.Namespace); n != 0 {
				return n
			}
			return strings.Compare(string(a.ID), string(b.ID))
		})
		c.JSON(http.StatusOK, rooms)
	})

	log.Info().Str("module", "relay.http").Msg("router setup")
	return r
}
