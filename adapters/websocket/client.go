package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512 * 1024 // audio frames

	frameBuffer = 256
)

// TextHandler is invoked for every text frame a device sends; text frames are
// chat turns.
type TextHandler func(ctx context.Context, userID int, deviceID string, text string)

// Client is one connected device. Binary frames carry µ-law microphone audio
// and are routed to the frames channel for the recorder; text frames carry
// chat input.
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	frames       chan []byte
	incomingPing chan string
	onText       TextHandler

	userID   int
	deviceID string

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client for an upgraded connection.
func NewClient(conn *websocket.Conn, userID int, deviceID string, onText TextHandler) *Client {
	ctx := context.Background()
	ctx = context.WithValue(ctx, "user_id", userID)
	ctx = context.WithValue(ctx, "device_id", deviceID)
	ctx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:         conn,
		send:         make(chan []byte, 256),
		frames:       make(chan []byte, frameBuffer),
		incomingPing: make(chan string, 1),
		onText:       onText,
		userID:       userID,
		deviceID:     deviceID,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	go c.Ping()
	go c.readPump()
	go c.writePump()
}

// DeviceID returns the device identifier from the client's JWT claims.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Frames returns the channel of raw audio frames streamed by the device. The
// channel is closed when the device disconnects.
func (c *Client) Frames() <-chan []byte {
	return c.frames
}

func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPingHandler(func(appData string) error {
		c.incomingPing <- appData
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// Close gracefully closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}

	if c.conn != nil {
		c.conn.Close()
	}

	if c.send != nil {
		close(c.send)
	}
}

// IsClosed returns true if the client connection is closed.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context returns the client's context; it is cancelled on disconnect.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) Ping() {
	for {
		select {
		case <-c.incomingPing:
		case <-time.After(pingPeriod):
			if c.IsClosed() {
				return
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				return
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Error("Failed to send ping", zap.Error(err))
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// readPump routes incoming frames: binary to the recorder, text to the chat
// handler. It is the only sender on the frames channel and closes it on exit.
func (c *Client) readPump() {
	defer func() {
		close(c.frames)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		if c.IsClosed() {
			return
		}

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			select {
			case c.frames <- message:
			default:
				// Recorder is not draining; drop the frame rather than
				// blocking the pump.
				log.WithCtx(c.ctx).Debug("dropping audio frame, buffer full")
			}
		case websocket.TextMessage:
			if c.onText != nil {
				// A chat turn can take seconds; keep reading mic frames
				// while it runs.
				go c.onText(c.ctx, c.userID, c.deviceID, string(message))
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if c.IsClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage sends a message to the client safely.
func (c *Client) SendMessage(message []byte) error {
	if c.IsClosed() {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.Close()
		return websocket.ErrCloseSent
	}
}
