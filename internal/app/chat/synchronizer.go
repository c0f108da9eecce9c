// Package chat keeps one channel's message log in sync with the relay and
// the message API, including optimistic sends and typing presence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNotJoined      = errors.New("not joined to a channel")
	ErrNotFound       = errors.New("message not found")
	ErrNotFailed      = errors.New("only failed messages can be resent")
	ErrDeliveryFailed = errors.New("message delivery failed")
)

const DefaultRequestTimeout = 10 * time.Second

type Options struct {
	TypingWindow   time.Duration
	RequestTimeout time.Duration
}

type (
	MessageHandler func(domain.ChatMessage)
	TypingHandler  func(names []string)
)

// Synchronizer is joined to at most one channel at a time.
type Synchronizer struct {
	signal core.EventChannel
	api    core.ChatAPI
	opts   Options

	messages *MessageLog
	typing   *TypingRoster

	mu          sync.Mutex
	channelID   domain.ChannelID
	user        domain.User
	joined      bool
	generation  uint64
	cursor      string
	unsubscribe []func()
	stopAfter   func() bool
	logger      zerolog.Logger

	hmu       sync.RWMutex
	nextKey   uint64
	onMessage map[uint64]MessageHandler
	onTyping  map[uint64]TypingHandler
}

func NewSynchronizer(signal core.EventChannel, api core.ChatAPI, opts Options) *Synchronizer {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	s := &Synchronizer{
		signal:    signal,
		api:       api,
		opts:      opts,
		messages:  NewMessageLog(),
		logger:    log.With().Str("module", "chat").Logger(),
		onMessage: make(map[uint64]MessageHandler),
		onTyping:  make(map[uint64]TypingHandler),
	}
	s.typing = NewTypingRoster(opts.TypingWindow, s.notifyTyping)
	return s
}

// Join enters channelID. The membership ends on Leave or when ctx is done,
// whichever comes first.
func (s *Synchronizer) Join(ctx context.Context, channelID domain.ChannelID, user domain.User) error {
	if channelID == "" {
		return fmt.Errorf("join: %w", ErrNotJoined)
	}
	s.mu.Lock()
	if s.joined && s.channelID == channelID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.Leave()

	s.mu.Lock()
	s.channelID = channelID
	s.user = user
	s.joined = true
	s.generation++
	s.cursor = ""
	s.logger = log.With().Str("module", "chat").Str("channel", string(channelID)).Str("user", string(user.ID)).Logger()
	s.unsubscribe = []func(){
		s.signal.Subscribe(protocol.MessageNew, func(m protocol.Message) { s.onNewMessage(m.(*protocol.NewMessage)) }),
		s.signal.Subscribe(protocol.UserTyping, func(m protocol.Message) { s.onUserTyping(m.(*protocol.UserTypingPayload)) }),
		s.signal.OnConnect(func() { s.emit(s.membership(true)) }),
	}
	s.stopAfter = context.AfterFunc(ctx, s.Leave)
	join := s.membershipLocked(true)
	logger := s.logger
	s.mu.Unlock()

	s.emit(join)
	logger.Info().Msg("joined chat")
	return nil
}

// Leave announces the departure and drops all channel state.
func (s *Synchronizer) Leave() {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return
	}
	leave := s.membershipLocked(false)
	unsubscribe := s.unsubscribe
	stopAfter := s.stopAfter
	s.joined = false
	s.unsubscribe = nil
	s.stopAfter = nil
	s.cursor = ""
	logger := s.logger
	s.mu.Unlock()

	if stopAfter != nil {
		stopAfter()
	}
	for _, u := range unsubscribe {
		u()
	}
	s.emit(leave)
	s.typing.Clear()
	s.messages.Reset()
	logger.Info().Msg("left chat")
}

func (s *Synchronizer) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func (s *Synchronizer) ChannelID() domain.ChannelID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

func (s *Synchronizer) Messages() []domain.ChatMessage { return s.messages.List() }

func (s *Synchronizer) Typing() []string { return s.typing.Names() }

// Send shows content immediately as sending, then posts it. The returned
// message carries the final state: delivered with its confirmed id, or failed.
func (s *Synchronizer) Send(ctx context.Context, content string) (domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrNotJoined
	}
	now := time.Now()
	msg := domain.ChatMessage{
		ID:             domain.MessageID(fmt.Sprintf("%s%d-%s", domain.TempIDPrefix, now.UnixMilli(), uuid.NewString()[:8])),
		ChannelID:      s.channelID,
		AuthorID:       s.user.ID,
		AuthorName:     s.user.Username,
		Content:        content,
		CreatedAt:      now,
		Status:         domain.StatusSending,
		OriginClientID: s.signal.ID(),
	}
	gen := s.generation
	s.mu.Unlock()

	s.messages.Append(msg)
	_ = s.StopTyping()
	return s.deliver(ctx, msg, gen)
}

// Resend posts a failed message again in place.
func (s *Synchronizer) Resend(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	gen, ok := s.membershipGeneration()
	if !ok {
		return domain.ChatMessage{}, ErrNotJoined
	}
	msg, ok := s.messages.Get(id)
	if !ok {
		return domain.ChatMessage{}, ErrNotFound
	}
	if msg.Status != domain.StatusFailed {
		return msg, ErrNotFailed
	}
	s.messages.SetStatus(id, domain.StatusSending)
	msg.Status = domain.StatusSending
	msg.OriginClientID = s.signal.ID()
	return s.deliver(ctx, msg, gen)
}

// membershipGeneration identifies the current join; it changes on every Join.
func (s *Synchronizer) membershipGeneration() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.joined
}

// reconcile applies fn to the log if membership gen is still current.
func (s *Synchronizer) reconcile(gen uint64, fn func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.joined || s.generation != gen {
		return false
	}
	return fn()
}

// deliver posts msg and reconciles the log only while the membership that
// created msg is still current.
func (s *Synchronizer) deliver(ctx context.Context, msg domain.ChatMessage, gen uint64) (domain.ChatMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	confirmed, err := s.api.PostMessage(reqCtx, msg.ChannelID, core.PostMessageRequest{
		ChannelID: string(msg.ChannelID),
		UserID:    string(msg.AuthorID),
		Username:  msg.AuthorName,
		Content:   msg.Content,
		SocketID:  msg.OriginClientID,
	})
	if err != nil {
		s.reconcile(gen, func() bool { return s.messages.SetStatus(msg.ID, domain.StatusFailed) })
		msg.Status = domain.StatusFailed
		s.lg().Warn().Err(err).Str("message", string(msg.ID)).Msg("delivery failed")
		return msg, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	confirmed = merge(msg, confirmed)
	if !s.reconcile(gen, func() bool { return s.messages.Confirm(msg.ID, confirmed) }) {
		s.lg().Debug().Str("temp", string(msg.ID)).Str("channel", string(msg.ChannelID)).Msg("confirmation outlived its channel")
		return confirmed, nil
	}
	s.lg().Debug().Str("temp", string(msg.ID)).Str("message", string(confirmed.ID)).Msg("delivered")
	return confirmed, nil
}

// merge fills what the server left out of its confirmation.
func merge(local, confirmed domain.ChatMessage) domain.ChatMessage {
	if confirmed.ID == "" {
		confirmed.ID = local.ID
	}
	if confirmed.ChannelID == "" {
		confirmed.ChannelID = local.ChannelID
	}
	if confirmed.AuthorID == "" {
		confirmed.AuthorID = local.AuthorID
	}
	if confirmed.AuthorName == "" {
		confirmed.AuthorName = local.AuthorName
	}
	if confirmed.Content == "" {
		confirmed.Content = local.Content
	}
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = local.CreatedAt
	}
	if confirmed.OriginClientID == "" {
		confirmed.OriginClientID = local.OriginClientID
	}
	confirmed.Status = domain.StatusDelivered
	return confirmed
}

func (s *Synchronizer) StartTyping() error { return s.sendTyping(true) }

func (s *Synchronizer) StopTyping() error { return s.sendTyping(false) }

func (s *Synchronizer) sendTyping(typing bool) error {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return ErrNotJoined
	}
	msg := &protocol.Typing{
		ChannelID: string(s.channelID),
		UserID:    string(s.user.ID),
		Username:  s.user.Username,
		IsTyping:  typing,
	}
	s.mu.Unlock()
	return s.signal.Emit(msg)
}

// LoadHistory fetches the newest page. Served newest first, kept oldest first.
func (s *Synchronizer) LoadHistory(ctx context.Context) (int, error) {
	return s.load(ctx, "")
}

// LoadOlder fetches the page before the oldest loaded one; no-op at the start of history.
func (s *Synchronizer) LoadOlder(ctx context.Context) (int, error) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()
	if cursor == "" {
		return 0, nil
	}
	return s.load(ctx, cursor)
}

// HasMore reports whether LoadOlder can fetch another page.
func (s *Synchronizer) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor != ""
}

func (s *Synchronizer) load(ctx context.Context, cursor string) (int, error) {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return 0, ErrNotJoined
	}
	channelID := s.channelID
	s.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	page, err := s.api.FetchMessages(reqCtx, channelID, cursor)
	if err != nil {
		return 0, fmt.Errorf("load messages: %w", err)
	}

	items := slices.Clone(page.Items)
	slices.Reverse(items)
	for i := range items {
		items[i].Status = domain.StatusDelivered
		if items[i].ChannelID == "" {
			items[i].ChannelID = channelID
		}
	}
	added := s.messages.Prepend(items)

	s.mu.Lock()
	if s.joined && s.channelID == channelID {
		s.cursor = page.NextCursor
	}
	s.mu.Unlock()
	s.lg().Debug().Int("added", added).Bool("more", page.NextCursor != "").Msg("history loaded")
	return added, nil
}

func (s *Synchronizer) OnNewMessage(h MessageHandler) (unsubscribe func()) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.nextKey++
	key := s.nextKey
	s.onMessage[key] = h
	return func() {
		s.hmu.Lock()
		defer s.hmu.Unlock()
		delete(s.onMessage, key)
	}
}

func (s *Synchronizer) OnTyping(h TypingHandler) (unsubscribe func()) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.nextKey++
	key := s.nextKey
	s.onTyping[key] = h
	return func() {
		s.hmu.Lock()
		defer s.hmu.Unlock()
		delete(s.onTyping, key)
	}
}

func (s *Synchronizer) onNewMessage(m *protocol.NewMessage) {
	s.mu.Lock()
	joined, channelID := s.joined, s.channelID
	s.mu.Unlock()
	if !joined || domain.ChannelID(m.ChannelID) != channelID {
		return
	}
	if m.SocketID != "" && m.SocketID == s.signal.ID() {
		s.lg().Debug().Str("message", m.ID).Msg("own echo suppressed")
		return
	}
	msg := domain.ChatMessage{
		ID:             domain.MessageID(m.ID),
		ChannelID:      domain.ChannelID(m.ChannelID),
		AuthorID:       domain.UserID(m.User.ID),
		AuthorName:     m.User.Username,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Status:         domain.StatusDelivered,
		OriginClientID: m.SocketID,
	}
	if !s.messages.Append(msg) {
		return
	}

	s.hmu.RLock()
	handlers := make([]MessageHandler, 0, len(s.onMessage))
	for _, h := range s.onMessage {
		handlers = append(handlers, h)
	}
	s.hmu.RUnlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (s *Synchronizer) onUserTyping(m *protocol.UserTypingPayload) {
	s.mu.Lock()
	joined, channelID, self := s.joined, s.channelID, s.user.ID
	s.mu.Unlock()
	if !joined || (m.ChannelID != "" && domain.ChannelID(m.ChannelID) != channelID) {
		return
	}
	// a stop never cuts a name's window short; it only lapses
	if domain.UserID(m.UserID) == self || !m.IsTyping {
		return
	}
	name := m.Username
	if name == "" {
		name = m.UserID
	}
	s.typing.Touch(name)
}

func (s *Synchronizer) notifyTyping(names []string) {
	s.hmu.RLock()
	handlers := make([]TypingHandler, 0, len(s.onTyping))
	for _, h := range s.onTyping {
		handlers = append(handlers, h)
	}
	s.hmu.RUnlock()
	for _, h := range handlers {
		h(names)
	}
}

func (s *Synchronizer) membership(join bool) protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membershipLocked(join)
}

func (s *Synchronizer) membershipLocked(join bool) protocol.Message {
	m := protocol.Membership{ChannelID: string(s.channelID), UserID: string(s.user.ID), Username: s.user.Username}
	if join {
		return &protocol.ChannelJoinPayload{Membership: m}
	}
	return &protocol.ChannelLeavePayload{Membership: m}
}

func (s *Synchronizer) emit(msg protocol.Message) {
	if err := s.signal.Emit(msg); err != nil {
		s.lg().Warn().Err(err).Str("event", string(msg.Event())).Msg("emit failed")
	}
}

func (s *Synchronizer) lg() *zerolog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.logger
	return &l
}
