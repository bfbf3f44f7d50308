package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned when sending on a closed connection.
var ErrConnClosed = errors.New("client connection closed")

// Frame tags. Every message on the wire is a 1-byte tag followed by the
// payload.
const (
	// TagJSON carries a JSON document, both directions.
	TagJSON byte = 'J'
	// TagAudio carries raw PCM audio from the client to transcribe.
	TagAudio byte = 'A'
	// TagWave carries a playable audio waveform to the client.
	TagWave byte = 'W'
)

// Conn wraps a WebSocket connection with tag framing. It implements the
// session transport.
type Conn struct {
	ID          string
	ConnectedAt time.Time

	sock   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewConn wraps a freshly upgraded WebSocket connection.
func NewConn(sock *websocket.Conn) *Conn {
	return &Conn{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		sock:        sock,
	}
}

// SendJSON sends a J-tagged frame carrying the JSON encoding of v.
func (c *Conn) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.send(TagJSON, payload)
}

// SendAudio sends a W-tagged frame carrying a playable waveform.
func (c *Conn) SendAudio(data []byte) error {
	return c.send(TagWave, data)
}

func (c *Conn) send(tag byte, payload []byte) error {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, tag)
	frame = append(frame, payload...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.sock.WriteMessage(websocket.BinaryMessage, frame)
}

// ReadFrame reads the next frame, returning its tag and payload.
func (c *Conn) ReadFrame() (byte, []byte, error) {
	_, msg, err := c.sock.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	if len(msg) == 0 {
		return 0, nil, errors.New("empty frame")
	}
	return msg[0], msg[1:], nil
}

// Close closes the underlying socket. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
