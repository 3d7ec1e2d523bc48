// Package remote implements an engine session that talks to an out-of-process
// engine server over socket.io.
//
// Every engine call is emitted as a "hapi" event carrying a Request with a
// fresh id; the server answers with a "hapi:reply" event carrying the same
// id. A transport disconnect fails every outstanding call with
// engine.ErrSessionLost.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Config describes how to reach the engine server.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
	CallTimeout        time.Duration
}

// conn is the slice of a socket.io client the session needs.
type conn interface {
	Emit(event string, args ...any)
	On(event string, fn func(...any))
	Disconnect()
}

type socketConn struct {
	io *socket.Socket
}

func (s socketConn) Emit(event string, args ...any) { s.io.Emit(event, args...) }

func (s socketConn) On(event string, fn func(...any)) { s.io.On(types.EventName(event), fn) }

func (s socketConn) Disconnect() { s.io.Disconnect() }

// NewConnector returns a connector that dials cfg.URL on every Connect.
func NewConnector(cfg Config) engine.Connector {
	return engine.ConnectorFunc(func(ctx context.Context) (engine.Engine, error) {
		return Dial(ctx, cfg)
	})
}

// Dial opens a socket.io connection to the engine server.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("engine", "remote", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to engine server", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	logger.Debug("Initiating connection...")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newClient(ctx, socketConn{io: io}, cfg.CallTimeout), nil
}

// Client is a remote engine session.
type Client struct {
	conn        conn
	callTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Reply
	lost    bool
}

func newClient(ctx context.Context, c conn, callTimeout time.Duration) *Client {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	cl := &Client{conn: c, callTimeout: callTimeout, pending: make(map[string]chan Reply)}
	logger := ctxlog.FromContext(ctx)

	c.On(EventReply, func(data ...any) {
		if len(data) == 0 {
			return
		}
		var r Reply
		if err := recode(data[0], &r); err != nil {
			logger.Warn("Discarding malformed engine reply.", "error", err)
			return
		}
		cl.deliver(r)
	})
	c.On("disconnect", func(reason ...any) {
		logger.Warn("Engine server disconnected.", "reason", fmt.Sprint(reason...))
		cl.fail()
	})
	return cl
}

func (c *Client) deliver(r Reply) {
	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	delete(c.pending, r.ID)
	c.mu.Unlock()
	if ok {
		ch <- r
	}
}

// fail marks the session lost and releases every waiting call.
func (c *Client) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lost {
		return
	}
	c.lost = true
	for id, ch := range c.pending {
		ch <- Reply{ID: id, Code: CodeSessionLost, Error: "session lost"}
		delete(c.pending, id)
	}
}

// call emits one request and waits for its reply.
func (c *Client) call(ctx context.Context, op string, args, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode %s arguments: %w", op, err)
	}
	req := Request{ID: uuid.NewString(), Op: op, Args: raw}
	ch := make(chan Reply, 1)

	c.mu.Lock()
	if c.lost {
		c.mu.Unlock()
		return engine.ErrSessionLost
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.conn.Emit(EventRequest, req)

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if !r.OK {
			return errorFor(r)
		}
		if out != nil && len(r.Result) > 0 {
			if err := json.Unmarshal(r.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", op, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(req.ID)
		return ctx.Err()
	case <-timer.C:
		c.forget(req.ID)
		return fmt.Errorf("remote engine: %s timed out after %s", op, c.callTimeout)
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Client) LoadDefinition(ctx context.Context, path string) (engine.DefinitionRef, error) {
	var ref engine.DefinitionRef
	err := c.call(ctx, OpLoadDefinition, pathArgs{Path: path}, &ref)
	return ref, err
}

func (c *Client) SetParameters(ctx context.Context, instanceID string, params engine.ParamSet) error {
	return c.call(ctx, OpSetParameters, instanceArgs{InstanceID: instanceID, Params: params}, nil)
}

func (c *Client) Cook(ctx context.Context, instanceID string, def engine.DefinitionRef) (engine.Ticket, error) {
	var t engine.Ticket
	err := c.call(ctx, OpCook, cookArgs{InstanceID: instanceID, Definition: def}, &t)
	return t, err
}

func (c *Client) PollCook(ctx context.Context, ticket engine.Ticket) (engine.PollResult, error) {
	var res engine.PollResult
	err := c.call(ctx, OpPollCook, ticketArgs{Ticket: ticket}, &res)
	return res, err
}

func (c *Client) Interrupt(ctx context.Context, ticket engine.Ticket) error {
	return c.call(ctx, OpInterrupt, ticketArgs{Ticket: ticket}, nil)
}

func (c *Client) DeleteInstance(ctx context.Context, instanceID string) error {
	return c.call(ctx, OpDeleteInstance, instanceArgs{InstanceID: instanceID}, nil)
}

// Disconnect asks the server to end the session and closes the transport.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	lost := c.lost
	c.mu.Unlock()
	if !lost {
		if err := c.call(ctx, OpDisconnect, struct{}{}, nil); err != nil {
			ctxlog.FromContext(ctx).Debug("Engine server did not acknowledge disconnect.", "error", err)
		}
	}
	c.fail()
	c.conn.Disconnect()
	return nil
}
