package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-tutoring-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Hub fans job progress out to websocket clients subscribed to a topic
// (a job id). With Redis configured, every instance relays what the others
// publish so a client may be connected to any of them.
type Hub struct {
	// Registered clients: topic -> clients (several tabs may watch one job)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb      *redis.Client
	instance string

	logger logger.ILogger
}

type clusterMessage struct {
	Topic   string          `json:"topic"`
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instance:   uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Topic] = append(h.clients[client.Topic], client)
			h.mu.Unlock()
			h.logger.Debug("Hub", "Client registered", map[string]interface{}{"topic": client.Topic})

		case client := <-h.unregister:
			h.mu.Lock()
			clients := h.clients[client.Topic]
			for i, c := range clients {
				if c == client {
					h.clients[client.Topic] = append(clients[:i], clients[i+1:]...)
					close(client.Send)
					break
				}
			}
			if len(h.clients[client.Topic]) == 0 {
				delete(h.clients, client.Topic)
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends {"type": eventType, "data": data} to every client watching
// topic, here and on the other instances.
func (h *Hub) Publish(ctx context.Context, topic, eventType string, data interface{}) {
	msg, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": data,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode message", map[string]interface{}{"topic": topic, "error": err.Error()})
		return
	}

	h.deliver(topic, msg)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Topic: topic, Origin: h.instance, Message: msg})
		if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"topic": topic, "error": err.Error()})
		}
	}
}

// Subscribers reports how many local clients watch topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) deliver(topic string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[topic] {
		select {
		case client.Send <- msg:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping message", map[string]interface{}{"topic": topic})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instance {
			continue
		}
		h.deliver(payload.Topic, payload.Message)
	}
}
