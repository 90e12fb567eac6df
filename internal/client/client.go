package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zull0910/tunos/internal/protocol"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("connection closed")

const writeTimeout = 5 * time.Second

// Conn attaches a terminal context to the relay's broadcast channel.
type Conn struct {
	ws     *websocket.Conn
	frames chan []byte
	done   chan struct{}

	writeMu sync.Mutex

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func Dial(ctx context.Context, rawURL, channel string) (*Conn, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	query := target.Query()
	query.Set("channel", channel)
	target.RawQuery = query.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	c := &Conn{
		ws:     ws,
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Frames yields every frame other contexts publish on the channel. It is
// closed when the connection ends; Err then reports why.
func (c *Conn) Frames() <-chan []byte {
	return c.frames
}

func (c *Conn) Publish(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		select {
		case c.frames <- data:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	select {
	case <-c.done:
		c.err = ErrClosed
	default:
		c.err = err
	}
}
