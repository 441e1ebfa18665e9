package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"malu-taxi-api/logger"
)

// Status is the connectivity state of the messaging session
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusQRPending    Status = "qr_pending"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// ErrNotConnected is returned by Send when the session is not active
var ErrNotConnected = errors.New("messaging session is not connected")

// Messenger is the surface the rest of the service depends on. Callers
// must re-check Status at call time rather than cache it.
type Messenger interface {
	Status() Status
	Send(phone, text string) error
}

// Client talks to an external messaging provider over HTTP. The provider
// exposes POST /send for outbound messages and GET /health for liveness.
// Connectivity is process-wide state with a single writer: every lifecycle
// observation goes through the events channel and only the run loop stores
// the new status.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.ILogger

	status atomic.Value // Status
	events chan Status
	done   chan struct{}
}

func NewClient(baseURL string, pollInterval time.Duration, log logger.ILogger) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
		events:  make(chan Status, 8),
		done:    make(chan struct{}),
	}
	c.status.Store(StatusInitializing)
	go c.run()
	go c.poll(pollInterval)
	return c
}

// Status returns the current connectivity snapshot.
func (c *Client) Status() Status {
	return c.status.Load().(Status)
}

// Send delivers a text message to the given phone number. It fails fast
// when the session is not connected.
func (c *Client) Send(phone, text string) error {
	if c.Status() != StatusConnected {
		return ErrNotConnected
	}

	body, _ := json.Marshal(map[string]string{
		"number":  phone,
		"message": text,
	})
	resp, err := c.http.Post(c.baseURL+"/send", "application/json", bytes.NewReader(body))
	if err != nil {
		c.emit(StatusDisconnected)
		return fmt.Errorf("gateway send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway send: provider returned %d", resp.StatusCode)
	}
	return nil
}

// Close stops the event loop and the health poller.
func (c *Client) Close() {
	close(c.done)
}

func (c *Client) emit(s Status) {
	select {
	case c.events <- s:
	case <-c.done:
	}
}

// run is the single writer of the connectivity status.
func (c *Client) run() {
	for {
		select {
		case s := <-c.events:
			if c.Status() != s {
				c.log.Info("gateway status changed",
					logger.String("from", string(c.Status())),
					logger.String("to", string(s)))
			}
			c.status.Store(s)
		case <-c.done:
			return
		}
	}
}

// poll watches provider liveness and feeds lifecycle events to run.
func (c *Client) poll(interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	c.check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.check()
		case <-c.done:
			return
		}
	}
}

func (c *Client) check() {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		c.emit(StatusDisconnected)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		c.emit(StatusConnected)
	} else {
		c.emit(StatusDisconnected)
	}
}
