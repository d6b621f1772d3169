package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/arisefit/arise/server/cache"
	"github.com/arisefit/arise/server/model"
	"github.com/arisefit/arise/server/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const globalChannel = "chat:global"

// Handler handles the global chat room: persistence, broadcast and the
// cross-instance relay.
type Handler struct {
	db        *gorm.DB
	cache     cache.Cache
	pubsub    cache.PubSub
	m         *Manager
	history   int64
	maxMsgLen int
	origin    string // identifies this process in relayed messages
	logger    *zap.Logger
}

// NewHandler creates a chat Handler.
func NewHandler(db *gorm.DB, c cache.Cache, ps cache.PubSub, m *Manager, history, maxMsgLen int, logger *zap.Logger) *Handler {
	if history <= 0 {
		history = 100
	}
	if maxMsgLen <= 0 {
		maxMsgLen = 500
	}
	return &Handler{
		db:        db,
		cache:     c,
		pubsub:    ps,
		m:         m,
		history:   int64(history),
		maxMsgLen: maxMsgLen,
		origin:    uuid.New().String(),
		logger:    logger,
	}
}

type sendReq struct {
	Content string `json:"content"`
}

// envelope wraps a broadcast packet for pub/sub relay between instances.
type envelope struct {
	Origin string          `json:"origin"`
	Packet json.RawMessage `json:"packet"`
}

// HandleSend processes a chat_send WS message: persist, broadcast to
// local sessions, publish for other instances and append to the cached
// history ring.
func (h *Handler) HandleSend(ctx context.Context, s *Session, raw json.RawMessage) error {
	var req sendReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}
	req.Content = strings.TrimSpace(req.Content)
	if len(req.Content) == 0 {
		return nil
	}
	if len([]rune(req.Content)) > h.maxMsgLen {
		return errors.New("message too long")
	}

	senderID := s.AccountID
	msg := &model.Message{
		SenderID:   &senderID,
		SenderName: s.Username,
		Content:    req.Content,
	}
	if err := h.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"id":          msg.ID,
		"sender_id":   s.AccountID,
		"sender_name": s.Username,
		"content":     req.Content,
		"ts":          time.Now().UnixMilli(),
	})
	recvPkt, _ := json.Marshal(&Packet{Type: "chat_recv", Payload: payload})

	h.m.BroadcastAll(recvPkt)
	observability.RecordChatMessage()

	env, _ := json.Marshal(envelope{Origin: h.origin, Packet: recvPkt})
	if err := h.pubsub.Publish(ctx, globalChannel, string(env)); err != nil {
		h.logger.Warn("chat publish failed", zap.Error(err))
	}
	_ = h.cache.LPush(ctx, globalChannel, string(recvPkt))
	_ = h.cache.LTrim(ctx, globalChannel, 0, h.history-1)
	return nil
}

// SendHistory pushes the cached chat history to a newly joined session,
// oldest message first.
func (h *Handler) SendHistory(ctx context.Context, s *Session) {
	msgs, err := h.cache.LRange(ctx, globalChannel, 0, h.history-1)
	if err != nil {
		return
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		s.SendRaw([]byte(msgs[i]))
	}
}

// RunRelay subscribes to the chat channel and rebroadcasts messages that
// originated on other instances to local sessions. It blocks until ctx is
// cancelled.
func (h *Handler) RunRelay(ctx context.Context) error {
	ch, cancel, err := h.pubsub.Subscribe(ctx, globalChannel)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.Origin == h.origin {
				continue // already broadcast locally
			}
			h.m.BroadcastAll(env.Packet)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RecentMessages returns the most recent persisted messages, newest first.
func (h *Handler) RecentMessages(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > int(h.history) {
		limit = int(h.history)
	}
	var out []model.Message
	err := h.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
