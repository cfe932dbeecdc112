package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"domo/internal/clock"
	"domo/internal/logger"
	"domo/internal/metrics"
	"domo/internal/models"
	"domo/internal/repository"
)

const (
	backoffBase = 100 * time.Millisecond
	backoffMax  = 60 * time.Second

	// Keepalive period; must be less than the transport's pong wait.
	pingPeriod = 54 * time.Second

	defaultHandshakeTimeout = 10 * time.Second
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrEmptyCredential   = errors.New("credential must not be empty")
	errInvalidTransition = errors.New("invalid connection transition")
)

// Dialer opens the transport to the control endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// Transport is one open control connection. Read blocks until the next
// frame; it returns an error once the connection is closed.
type Transport interface {
	Read() ([]byte, error)
	Write(v any) error
	Ping() error
	Close() error
}

// closeReason tags a session so its close handler knows what to do next.
type closeReason int

const (
	reasonNone closeReason = iota
	reasonReconnect
	reasonHandshakeError
	reasonShutdown
)

func (r closeReason) String() string {
	switch r {
	case reasonReconnect:
		return "reconnect"
	case reasonHandshakeError:
		return "handshake-error"
	case reasonShutdown:
		return "shutdown"
	default:
		return ""
	}
}

// session is one dial attempt and the connection it produced. Events for
// a session that is no longer current are ignored.
type session struct {
	gen        uint64
	transport  Transport
	reason     closeReason
	cancelDial context.CancelFunc
	stopPing   chan struct{}
}

// ConnectionOptions configures the control connection.
type ConnectionOptions struct {
	URL              string
	CredentialField  string
	Credential       string // used when nothing is stored
	HandshakeTimeout time.Duration
}

// ConnectionManager owns the control connection lifecycle. All methods
// except the dial and reader goroutines run on the event loop.
type ConnectionManager struct {
	opts     ConnectionOptions
	dialer   Dialer
	loop     *eventLoop
	clock    clock.Clock
	store    *TimeSeriesStore
	mirror   *ActuatorMirror
	renderer Renderer
	journal  repository.EventRepo
	cache    repository.Cache
	metrics  *metrics.Metrics
	log      *logger.Logger

	ctx        context.Context
	credential string
	state      models.ConnectionState
	message    string
	attempt    int
	gen        uint64
	sess       *session
	retry      clock.Timer
	retryGen   uint64
	refusal    string
}

func newConnectionManager(opts ConnectionOptions, dialer Dialer, loop *eventLoop, clk clock.Clock,
	store *TimeSeriesStore, mirror *ActuatorMirror, renderer Renderer,
	journal repository.EventRepo, cache repository.Cache, m *metrics.Metrics, log *logger.Logger,
) *ConnectionManager {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if renderer == nil {
		renderer = NopSurface{}
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &ConnectionManager{
		opts:     opts,
		dialer:   dialer,
		loop:     loop,
		clock:    clk,
		store:    store,
		mirror:   mirror,
		renderer: renderer,
		journal:  journal,
		cache:    cache,
		metrics:  m,
		log:      log,
		ctx:      context.Background(),
		state:    models.Disconnected,
		message:  "Disconnected",
	}
	mirror.bind(c)
	return c
}

// Backoff returns the reconnect delay for the given attempt number.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 10 {
		return backoffMax
	}
	return min(backoffMax, backoffBase<<attempt)
}

// loadCredential picks the stored credential, falling back to the
// configured one.
func (c *ConnectionManager) loadCredential(ctx context.Context) {
	cred, ok, err := c.cache.Get(ctx, repository.KeyCredential)
	if err != nil {
		c.log.Warnw("credential_cache_read_failed", "err", err)
	}
	if ok && cred != "" {
		c.credential = cred
		return
	}
	c.credential = c.opts.Credential
}

// Status is what the status indicator shows right now.
func (c *ConnectionManager) Status() models.ConnectionStatus {
	return models.ConnectionStatus{
		State:            c.state,
		StateName:        c.state.String(),
		Message:          c.message,
		Category:         c.state.Category(),
		ReconnectAttempt: c.attempt,
	}
}

// Connected reports whether actuator edits can be sent.
func (c *ConnectionManager) Connected() bool {
	return c.state == models.Connected && c.sess != nil && c.sess.transport != nil
}

// Send writes one message on the open connection.
func (c *ConnectionManager) Send(v any) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	return c.sess.transport.Write(v)
}

// Connect starts a new session. Only valid from Disconnected or Errored.
func (c *ConnectionManager) Connect() error {
	if c.sess != nil || (c.state != models.Disconnected && c.state != models.Errored) {
		return fmt.Errorf("%w: connect from %s", errInvalidTransition, c.state)
	}
	c.stopRetry()
	c.gen++
	s := &session{gen: c.gen}
	c.sess = s
	c.refusal = ""
	c.setState(models.Connecting, "Connecting...")

	dialCtx, cancel := context.WithTimeout(c.ctx, c.opts.HandshakeTimeout)
	s.cancelDial = cancel
	go func() {
		t, err := c.dialer.Dial(dialCtx, c.opts.URL)
		cancel()
		if !c.loop.post(func() { c.onDialed(s, t, err) }) && t != nil {
			_ = t.Close()
		}
	}()
	return nil
}

func (c *ConnectionManager) onDialed(s *session, t Transport, err error) {
	if c.sess != s {
		if t != nil {
			_ = t.Close()
		}
		return
	}
	if err != nil {
		c.log.Warnw("ws_dial_failed", "url", c.opts.URL, "err", err)
		c.onClosed(s, err)
		return
	}
	s.transport = t
	if s.reason != reasonNone {
		_ = t.Close()
		c.onClosed(s, nil)
		return
	}

	go c.readLoop(s, t)

	req := models.ConnectRequest{
		CredentialField: c.opts.CredentialField,
		Credential:      c.credential,
		LastLogTimes:    c.store.LastLogTimes(),
	}
	if err := t.Write(req); err != nil {
		c.log.Warnw("ws_handshake_write_failed", "err", err)
		_ = t.Close()
	}
}

// readLoop forwards frames to the event loop until the transport closes.
func (c *ConnectionManager) readLoop(s *session, t Transport) {
	for {
		data, err := t.Read()
		if err != nil {
			c.loop.post(func() { c.onClosed(s, err) })
			return
		}
		if !c.loop.post(func() { c.onFrame(s, data) }) {
			_ = t.Close()
			return
		}
	}
}

func (c *ConnectionManager) onFrame(s *session, data []byte) {
	if c.sess != s {
		return
	}
	msg, err := models.DecodeServerMessage(data)
	if err != nil {
		c.log.Warnw("unknown_message", "err", err)
		c.metrics.MessageReceived("invalid")
		return
	}

	switch m := msg.(type) {
	case *models.ConnectedMessage:
		c.metrics.MessageReceived(models.MsgConnected)
		c.attempt = 0
		c.setState(models.Connected, "Connected")
		c.store.ApplySnapshots(m.Logs)
		c.mirror.ApplySnapshot(m.Actuators)
		c.startPing(s)
	case *models.DisconnectedMessage:
		c.metrics.MessageReceived(models.MsgDisconnected)
		c.log.Errorw("handshake_refused", "error", m.Error)
		s.reason = reasonHandshakeError
		c.refusal = m.Error
		_ = s.transport.Close()
	case *models.ActuatorMessage:
		c.metrics.MessageReceived(models.MsgActuator)
		c.mirror.ApplyRemote(m.Name, m.Value)
	case *models.LogMessage:
		c.metrics.MessageReceived(models.MsgLog)
		c.store.AppendLog(m.Sensor, m.Log)
	}
}

func (c *ConnectionManager) onClosed(s *session, err error) {
	if c.sess != s {
		return
	}
	c.sess = nil
	s.cancelDial()
	if s.stopPing != nil {
		close(s.stopPing)
	}
	c.log.Infow("ws_read_closed", "reason", s.reason.String(), "err", err)

	switch s.reason {
	case reasonReconnect:
		c.setState(models.Errored, "Reconnecting...")
		if err := c.Connect(); err != nil {
			c.log.Errorw("reconnect_failed", "err", err)
		}
	case reasonHandshakeError:
		c.setState(models.Errored, "Connection refused: "+c.refusal)
	case reasonShutdown:
		c.setState(models.Disconnected, "Disconnected")
	default:
		c.attempt++
		delay := Backoff(c.attempt)
		c.setState(models.Errored, fmt.Sprintf("Connection lost, retrying in %s", delay))
		c.scheduleRetry(delay)
	}
}

func (c *ConnectionManager) scheduleRetry(delay time.Duration) {
	c.stopRetry()
	gen := c.retryGen
	c.retry = c.clock.AfterFunc(delay, func() {
		c.loop.post(func() { c.onRetry(gen) })
	})
	c.metrics.ReconnectScheduled(delay)
}

func (c *ConnectionManager) onRetry(gen uint64) {
	if gen != c.retryGen || c.sess != nil {
		return
	}
	if c.state != models.Errored && c.state != models.Disconnected {
		return
	}
	c.retry = nil
	if err := c.Connect(); err != nil {
		c.log.Errorw("reconnect_failed", "err", err)
	}
}

// stopRetry cancels a pending backoff timer. Callbacks already posted see a
// newer generation and do nothing.
func (c *ConnectionManager) stopRetry() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.retryGen++
}

func (c *ConnectionManager) startPing(s *session) {
	if s.stopPing != nil {
		return
	}
	s.stopPing = make(chan struct{})
	ticker := c.clock.NewTicker(pingPeriod)
	stop := s.stopPing
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				c.loop.post(func() { c.ping(s) })
			}
		}
	}()
}

func (c *ConnectionManager) ping(s *session) {
	if c.sess != s || s.transport == nil {
		return
	}
	if err := s.transport.Ping(); err != nil {
		c.log.Warnw("ws_ping_failed", "err", err)
		_ = s.transport.Close()
	}
}

// SetCredential stores a new credential and reconnects with it. An
// unchanged credential does nothing.
func (c *ConnectionManager) SetCredential(cred string) error {
	if cred == "" {
		return ErrEmptyCredential
	}
	if cred == c.credential {
		return nil
	}
	c.credential = cred

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := c.cache.Set(ctx, repository.KeyCredential, cred); err != nil {
		c.log.Warnw("credential_cache_write_failed", "err", err)
	}

	c.attempt = 0
	if s := c.sess; s != nil {
		s.reason = reasonReconnect
		s.cancelDial()
		if s.transport != nil {
			_ = s.transport.Close()
		}
		return nil
	}
	return c.Connect()
}

// shutdown closes the session without scheduling a retry. It runs after
// the event loop has stopped, so close callbacks are handled inline.
func (c *ConnectionManager) shutdown() {
	c.stopRetry()
	s := c.sess
	if s == nil {
		return
	}
	s.reason = reasonShutdown
	s.cancelDial()
	if s.transport != nil {
		_ = s.transport.Close()
	}
	c.onClosed(s, nil)
}

func (c *ConnectionManager) setState(state models.ConnectionState, message string) {
	c.state = state
	c.message = message
	status := c.Status()

	c.metrics.SetConnectionState(state, c.attempt)
	c.renderer.ConnectionStatus(status)
	c.log.Infow("connection_status", "state", status.StateName, "message", message, "attempt", c.attempt)

	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	err := c.journal.Append(ctx, models.ConnectionEvent{
		OccurredAt: c.clock.Now(),
		State:      status.StateName,
		Message:    message,
		Attempt:    c.attempt,
	})
	if err != nil {
		c.log.Warnw("journal_append_failed", "err", err)
	}
}
