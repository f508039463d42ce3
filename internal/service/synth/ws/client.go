// Package ws provides a synthesis capability speaking a JSON-over-websocket
// streaming TTS protocol: one synthesize request per utterance, audio chunk
// frames streamed back until an end frame. Cancelling closes the stream.
package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"

	"voice-qa-session/internal/service/synth"
)

// Config holds connection settings for the TTS endpoint.
type Config struct {
	URL   string
	Voice string
	Token string
}

// Client implements synth.Capability over a websocket TTS endpoint.
// Decoded audio is written to the provided sink (a playback device or
// file); the session core never touches codecs itself.
type Client struct {
	mu    sync.Mutex
	cfg   Config
	sink  io.Writer
	conn  *websocket.Conn
	ev    synth.Events
	gen   int
	quiet bool // cancellation in progress, suppress the read-loop error
}

type request struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Voice string `json:"voice,omitempty"`
	Token string `json:"token,omitempty"`
}

type frame struct {
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewClient creates a websocket TTS client writing audio to sink.
func NewClient(cfg Config, sink io.Writer) *Client {
	return &Client{cfg: cfg, sink: sink}
}

// Available reports whether an endpoint is configured.
func (c *Client) Available() bool {
	return c.cfg.URL != ""
}

// Speak dials the endpoint and streams one utterance. Completion is
// reported through ev.
func (c *Client) Speak(ctx context.Context, text string, ev synth.Events) error {
	if !c.Available() {
		return errors.New("ws: no synthesis endpoint configured")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("ws: dial synthesis endpoint: %w", err)
	}

	req := request{Type: "synthesize", Text: text, Voice: c.cfg.Voice, Token: c.cfg.Token}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("ws: send synthesize request: %w", err)
	}

	c.mu.Lock()
	c.closeLocked()
	c.gen++
	c.conn = conn
	c.ev = ev
	c.quiet = false
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	return nil
}

// Cancel immediately stops the in-flight utterance by closing the stream.
// The interrupted utterance settles through OnEnd.
func (c *Client) Cancel() {
	c.mu.Lock()
	ev := c.ev
	c.quiet = true
	c.closeLocked()
	c.ev = nil
	c.mu.Unlock()
	if ev != nil {
		ev.OnEnd()
	}
}

// PlayCue asks the endpoint for the short acknowledgment tone and waits
// for it to finish.
func (c *Client) PlayCue(ctx context.Context) error {
	if !c.Available() {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("ws: dial synthesis endpoint: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(request{Type: "cue", Token: c.cfg.Token}); err != nil {
		return fmt.Errorf("ws: send cue request: %w", err)
	}
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("ws: read cue frame: %w", err)
		}
		switch f.Type {
		case "audio":
			if err := c.writeAudio(f.Audio); err != nil {
				return err
			}
		case "end":
			return nil
		case "error":
			return fmt.Errorf("ws: cue synthesis failed: %s", f.Message)
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.settle(gen, err)
			return
		}
		switch f.Type {
		case "audio":
			if err := c.writeAudio(f.Audio); err != nil {
				c.settle(gen, err)
				return
			}
		case "end":
			c.settle(gen, nil)
			return
		case "error":
			c.settle(gen, fmt.Errorf("ws: synthesis failed: %s", f.Message))
			return
		}
	}
}

func (c *Client) writeAudio(encoded string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("ws: decode audio frame: %w", err)
	}
	if _, err := c.sink.Write(raw); err != nil {
		return fmt.Errorf("ws: write audio: %w", err)
	}
	return nil
}

// settle reports the utterance outcome exactly once, unless a cancel
// already settled it.
func (c *Client) settle(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen || c.ev == nil {
		c.mu.Unlock()
		return
	}
	ev := c.ev
	quiet := c.quiet
	c.ev = nil
	c.closeLocked()
	c.mu.Unlock()

	if err != nil && !quiet {
		ev.OnError(err)
		return
	}
	ev.OnEnd()
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
