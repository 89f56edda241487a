// Package fakeconn provides an in-memory connection recording every frame sent to it.
package fakeconn

import (
	"encoding/json"
	"match-chat/errors"
	"sync"
	"time"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Conn struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	sent      [][]byte
	sendErr   error
	closed    bool
}

func New(id string) *Conn {
	return &Conn{id: id, createdAt: time.Now()}
}

// Failing returns a connection whose every Send fails with err.
func Failing(id string, err error) *Conn {
	c := New(id)
	c.sendErr = err
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) CreatedAt() time.Time { return c.createdAt }

func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Frames decodes every frame received so far.
func (c *Conn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]Frame, 0, len(c.sent))
	for _, raw := range c.sent {
		var f Frame
		if err := json.Unmarshal(raw, &f); err == nil {
			frames = append(frames, f)
		}
	}
	return frames
}

// Types returns the "type" of every frame received so far, in order.
func (c *Conn) Types() []string {
	var types []string
	for _, f := range c.Frames() {
		types = append(types, f.Type)
	}
	return types
}
