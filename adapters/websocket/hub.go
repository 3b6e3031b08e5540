package websocket

import (
	"fmt"
	"sync"

	"github.com/voxloop/voxloop/metrics"
	"github.com/voxloop/voxloop/utils/log"
)

// Hub tracks connected devices. It implements both recorder.DeviceSource and
// player.DeviceSink, which is how the pipeline reaches the device hardware.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	metrics    *metrics.Metrics
}

// NewHub creates a new WebSocket hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    m,
	}
}

// Run starts the hub.
func (h *Hub) Run() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.setClientGauge(count)
			log.WithCtx(client.ctx).Debug("New client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				client.Close()
				h.setClientGauge(count)
				log.WithCtx(client.ctx).Debug("Client unregistered")
			}
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.IsClosed() {
			client.SendMessage(message)
		}
	}
}

// SendToDevice sends a message to a specific client by device ID.
func (h *Hub) SendToDevice(deviceID string, message []byte) error {
	client := h.clientByDevice(deviceID)
	if client == nil {
		return fmt.Errorf("client with device ID %s not found", deviceID)
	}
	return client.SendMessage(message)
}

// Frames returns the audio frame stream of a connected device.
func (h *Hub) Frames(deviceID string) (<-chan []byte, error) {
	client := h.clientByDevice(deviceID)
	if client == nil {
		return nil, fmt.Errorf("client with device ID %s not found", deviceID)
	}
	return client.Frames(), nil
}

// IsDeviceConnected checks if a device is connected.
func (h *Hub) IsDeviceConnected(deviceID string) bool {
	return h.clientByDevice(deviceID) != nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) clientByDevice(deviceID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.deviceID == deviceID && !client.IsClosed() {
			return client
		}
	}
	return nil
}

func (h *Hub) setClientGauge(count int) {
	if h.metrics != nil {
		h.metrics.ConnectedClients.Set(float64(count))
	}
}
