// Package websocket - WebSocket change feed
// Pushes catalog change events to connected readers, grouped into topic rooms
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storyhub/internal/events"
	"storyhub/pkg/logger"
)

// Constants for performance and limits
const (
	maxMessageSize  = 512
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxRoomSize     = 1000
	sendBuffer      = 64
	cleanupInterval = 5 * time.Minute
)

// TopicCatalog receives every event. Story rooms receive the events of one story.
const TopicCatalog = "catalog"

// StoryTopic is the room name for one story
func StoryTopic(storyID string) string {
	return "story:" + storyID
}

// Hub manages topic rooms and client connections
type Hub struct {
	roomsMu sync.RWMutex
	rooms   map[string]*Room
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Room fans out events to the clients subscribed to one topic
type Room struct {
	topic      string
	clientsMu  sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan *events.Event
	register   chan *Client
	unregister chan *Client
	stopped    bool
	stop       chan struct{}
}

// Client represents a WebSocket client connection
type Client struct {
	hub          *Hub
	room         *Room
	conn         *websocket.Conn
	send         chan *events.Event
	userID       string
	lastActive   time.Time
	onDisconnect func()
}

// NewHub creates a hub and starts the empty-room cleanup routine
func NewHub() *Hub {
	hub := &Hub{
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}

	hub.wg.Add(1)
	go hub.cleanupRooms()

	return hub
}

// Publish implements events.Publisher. It never blocks on slow clients.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	topics := []string{TopicCatalog}
	if e.StoryID != "" {
		topics = append(topics, StoryTopic(e.StoryID))
	}

	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	for _, topic := range topics {
		room, ok := h.rooms[topic]
		if !ok {
			continue
		}
		ev := e
		select {
		case room.broadcast <- &ev:
		default:
			logrus.Warnf("Room %s broadcast buffer full, dropping %s", topic, e.Type)
		}
	}
	return nil
}

// cleanupRooms periodically removes empty rooms
func (h *Hub) cleanupRooms() {
	defer h.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.roomsMu.Lock()
			for topic, room := range h.rooms {
				room.clientsMu.RLock()
				clientCount := len(room.clients)
				room.clientsMu.RUnlock()

				if clientCount == 0 {
					close(room.stop)
					delete(h.rooms, topic)
					logrus.Debugf("Cleaned up empty room: %s", topic)
				}
			}
			h.roomsMu.Unlock()

		case <-h.stop:
			return
		}
	}
}

// GetOrCreateRoom returns the room for topic, creating it on first use
func (h *Hub) GetOrCreateRoom(topic string) *Room {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	if room, exists := h.rooms[topic]; exists {
		return room
	}

	room := &Room{
		topic:      topic,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}

	h.rooms[topic] = room
	go room.run()

	return room
}

// run handles room operations
func (r *Room) run() {
	for {
		select {
		case client := <-r.register:
			r.handleRegister(client)
		case client := <-r.unregister:
			r.handleUnregister(client)
		case e := <-r.broadcast:
			r.broadcastToAll(e)
		case <-r.stop:
			r.handleStop()
			return
		}
	}
}

func (r *Room) handleRegister(client *Client) {
	if r.stopped {
		return
	}

	r.clientsMu.Lock()
	if len(r.clients) >= maxRoomSize {
		r.clientsMu.Unlock()
		logrus.Warnf("Room %s full, rejecting client %s", r.topic, client.userID)
		close(client.send)
		return
	}
	r.clients[client] = true
	count := len(r.clients)
	r.clientsMu.Unlock()

	logger.WebSocket(r.topic, "join", count)
}

func (r *Room) handleUnregister(client *Client) {
	r.clientsMu.Lock()
	if _, ok := r.clients[client]; ok {
		delete(r.clients, client)
		close(client.send)
	}
	count := len(r.clients)
	r.clientsMu.Unlock()

	logger.WebSocket(r.topic, "leave", count)
}

func (r *Room) handleStop() {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	r.stopped = true
	for client := range r.clients {
		close(client.send)
		delete(r.clients, client)
	}
}

// broadcastToAll drops clients whose buffer is full
func (r *Room) broadcastToAll(e *events.Event) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()

	for client := range r.clients {
		select {
		case client.send <- e:
		default:
			logrus.Warnf("Client %s send buffer full, disconnecting", client.userID)
			close(client.send)
			delete(r.clients, client)
		}
	}
}

// ClientCount returns the number of clients subscribed to topic
func (h *Hub) ClientCount(topic string) int {
	h.roomsMu.RLock()
	room, ok := h.rooms[topic]
	h.roomsMu.RUnlock()
	if !ok {
		return 0
	}
	room.clientsMu.RLock()
	defer room.clientsMu.RUnlock()
	return len(room.clients)
}

// readPump only keeps the connection alive; the feed is one-way
func (c *Client) readPump() {
	defer func() {
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		select {
		case c.room.unregister <- c:
		case <-c.room.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActive = time.Now()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

// writePump writes events and pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(e)
			if err != nil {
				logrus.Errorf("Failed to marshal event: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeClient subscribes conn to topic and starts its pumps
func (h *Hub) ServeClient(conn *websocket.Conn, userID, topic string, onDisconnect func()) {
	room := h.GetOrCreateRoom(topic)

	client := &Client{
		hub:          h,
		room:         room,
		conn:         conn,
		send:         make(chan *events.Event, sendBuffer),
		userID:       userID,
		lastActive:   time.Now(),
		onDisconnect: onDisconnect,
	}

	select {
	case room.register <- client:
	case <-room.stop:
		conn.Close()
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// Stop closes every room and waits for client goroutines
func (h *Hub) Stop() {
	logrus.Info("Stopping WebSocket hub...")

	close(h.stop)
	h.roomsMu.Lock()
	for topic, room := range h.rooms {
		close(room.stop)
		delete(h.rooms, topic)
	}
	h.roomsMu.Unlock()

	h.wg.Wait()
	logrus.Info("WebSocket hub stopped")
}
