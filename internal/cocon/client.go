package cocon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// the server parks the notification request for up to ~30s
	pollTimeout    = 35 * time.Second
	sendTimeout    = 10 * time.Second
	retryDelay     = 2 * time.Second
	notifBufferCap = 64
)

// Config holds the room server address.
type Config struct {
	Host string
	Port int
}

// Client is the HTTP session to the conference-control server. It performs
// the connect handshake, long-polls the notification URL on its own
// goroutine, and exposes request/response calls. Implements Source.
type Client struct {
	base   string
	send   *http.Client
	poll   *http.Client
	logger *slog.Logger

	mu sync.Mutex
	id string // session id; empty means not connected

	notifs chan Notification
	stop   chan struct{}
	cancel context.CancelFunc
	ctx    context.Context // cancelled on Close so an in-flight poll unblocks
	wg     sync.WaitGroup
}

// NewClient returns a Client for the given room server. Call Connect before
// Send or Notifications.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		base:   fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		send:   &http.Client{Timeout: sendTimeout},
		poll:   &http.Client{Timeout: pollTimeout},
		logger: logger,
		notifs: make(chan Notification, notifBufferCap),
		stop:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect performs the session handshake and starts the notification loop.
// The loop runs even if the initial handshake fails; it keeps retrying until
// Close, so a room server that comes up late is picked up automatically.
func (c *Client) Connect(ctx context.Context) error {
	err := c.handshake(ctx)
	c.wg.Add(1)
	go c.pollLoop()
	return err
}

func (c *Client) handshake(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.base+"/CoCon/Connect/", nil)
	if err != nil {
		return fmt.Errorf("build connect request: %w", err)
	}
	resp, err := c.send.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read connect response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var envelope struct {
		Connect struct {
			ID json.Number `json:"id"`
		} `json:"Connect"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parse connect response: %w", err)
	}
	if envelope.Connect.ID == "" {
		return errors.New("connect response has no session id")
	}
	c.setID(envelope.Connect.ID.String())
	c.logger.Info("cocon: connected", "session", envelope.Connect.ID.String())
	return nil
}

// Send issues one request/response call. The session id is appended to the
// query automatically.
func (c *Client) Send(ctx context.Context, endpoint string, params url.Values) (Response, error) {
	id := c.sessionID()
	if id == "" {
		return nil, errors.New("cocon: not connected")
	}
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("id", id)
	u := fmt.Sprintf("%s/CoCon/%s/?%s", c.base, endpoint, q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.send.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%s: parse response: %w", endpoint, err)
	}
	return r, nil
}

// Unsubscribe tells the server to stop pushing the given notification models
// on this session.
func (c *Client) Unsubscribe(ctx context.Context, models []Model) error {
	var errs []error
	for _, m := range models {
		_, err := c.Send(ctx, "Notification/Unsubscribe", url.Values{"Model": {string(m)}})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notifications is the live stream of classified notifications. Frames the
// classifier discards never appear here.
func (c *Client) Notifications() <-chan Notification {
	return c.notifs
}

// Close stops the notification loop and releases the server session.
func (c *Client) Close() error {
	close(c.stop)
	c.cancel()
	c.wg.Wait()
	if id := c.sessionID(); id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		u := fmt.Sprintf("%s/CoCon/Disconnect/?id=%s", c.base, url.QueryEscape(id))
		if req, err := http.NewRequestWithContext(ctx, "GET", u, nil); err == nil {
			if resp, err := c.send.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	return nil
}

func (c *Client) pollLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if c.sessionID() == "" {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			err := c.handshake(ctx)
			cancel()
			if err != nil {
				c.logger.Warn("cocon: reconnect failed", "err", err)
				c.sleep(retryDelay)
				continue
			}
		}

		raw, err := c.pollOnce()
		if err != nil {
			c.logger.Debug("cocon: notification poll failed", "err", err)
			c.sleep(retryDelay)
			continue
		}
		if raw == nil {
			continue // quiet poll
		}
		n, err := ParseNotification(raw)
		if err != nil {
			c.logger.Warn("cocon: dropping malformed notification", "err", err)
			continue
		}
		if n == nil {
			continue
		}
		c.deliver(n)
	}
}

// pollOnce issues one long-poll request. A client-side timeout is a normal
// quiet interval, not an error. A non-200 invalidates the session so the
// loop re-connects.
func (c *Client) pollOnce() ([]byte, error) {
	u := fmt.Sprintf("%s/CoCon/Notification/?id=%s", c.base, url.QueryEscape(c.sessionID()))
	req, err := http.NewRequestWithContext(c.ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.poll.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.setID("")
		return nil, fmt.Errorf("notification poll returned %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

// deliver hands a notification to the consumer without ever blocking the
// poll loop. When the buffer is full the oldest pending notification is
// dropped; the consumer resyncs from later state-bearing messages.
func (c *Client) deliver(n Notification) {
	for {
		select {
		case c.notifs <- n:
			return
		default:
			select {
			case old := <-c.notifs:
				c.logger.Warn("cocon: notification buffer full, dropping oldest", "kind", old.kind())
			default:
			}
		}
	}
}

func (c *Client) sleep(d time.Duration) {
	select {
	case <-c.stop:
	case <-time.After(d):
	}
}

func (c *Client) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) setID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}
