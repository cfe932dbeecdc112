package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"domo/internal/clock"
	"domo/internal/models"
	"domo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

const connectedFrame = `{"message":"connected",
	"logs":{
		"humidity":{"humanName":"Bathroom","type":"humidity","log":[{"time":1699999940,"interval":60,"value":55}]},
		"temperature":{"humanName":"Living room","type":"temperature","desiredValue":21,"log":[{"time":1699999940,"interval":60,"value":20.5}]}
	},
	"actuators":{"colorlight":{"mode":"hsv","value":1}}}`

type harness struct {
	svc    *Service
	clock  *clock.FakeClock
	dialer *fakeDialer
	cache  *memCache
	events *fakeEventRepo
	rec    *recorder

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan error
}

// newHarness starts a client against a fake controller. setup runs before
// the client starts.
func newHarness(t *testing.T, setup func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.Fake(time.Unix(1_700_000_000, 0)),
		dialer: newFakeDialer(),
		cache:  newMemCache(),
		events: &fakeEventRepo{},
		rec:    &recorder{},
		done:   make(chan error, 1),
	}
	if setup != nil {
		setup(h)
	}
	h.svc = NewService(Options{
		Connection: ConnectionOptions{URL: "ws://controller/control", CredentialField: "password", Credential: "s3cret"},
		Priority:   []string{"temperature", "humidity"},
		Location:   time.UTC,
	}, Deps{
		Dialer:   h.dialer,
		Repos:    &repository.Repository{Cache: h.cache, EventRepo: h.events},
		Renderer: h.rec,
		Controls: h.rec,
		Clock:    h.clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.svc.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *harness) status() models.ConnectionStatus {
	st, _ := h.svc.Status(context.Background())
	return st
}

func (h *harness) waitState(t *testing.T, state models.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.status().State == state }, waitFor, tick, "waiting for %s", state)
}

func (h *harness) nextTransport(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-h.dialer.transports:
		return tr
	case <-time.After(waitFor):
		t.Fatal("no dial")
		return nil
	}
}

// handshake waits for the connect request on tr.
func (h *harness) handshake(t *testing.T, tr *fakeTransport) models.ConnectRequest {
	t.Helper()
	require.Eventually(t, func() bool { return len(tr.messages()) > 0 }, waitFor, tick)
	req, ok := tr.messages()[0].(models.ConnectRequest)
	require.True(t, ok, "first message is %T", tr.messages()[0])
	return req
}

func (h *harness) connect(t *testing.T) *fakeTransport {
	t.Helper()
	tr := h.nextTransport(t)
	h.handshake(t, tr)
	tr.push(connectedFrame)
	h.waitState(t, models.Connected)
	return tr
}

func (h *harness) waitPending(t *testing.T, want time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		p := h.clock.Pending()
		return len(p) == 1 && p[0] == want
	}, waitFor, tick, "waiting for a %s retry timer", want)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{9, 51200 * time.Millisecond},
		{10, 60 * time.Second},
		{64, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestService_HandshakeUsesStoredState(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		ctx := context.Background()
		require.NoError(t, h.cache.Set(ctx, repository.KeyCredential, "stored-pass"))
		require.NoError(t, h.cache.SaveJSON(ctx, repository.KeySensors, map[string]*models.SensorRecord{
			"temperature": {Kind: "temperature", Log: []models.LogPoint{{Time: 100, Interval: 60, Value: 20}}},
		}))
	})

	req := h.handshake(t, h.nextTransport(t))
	assert.Equal(t, "password", req.CredentialField)
	assert.Equal(t, "stored-pass", req.Credential)
	assert.Equal(t, map[string]models.LastLogTime{"temperature": {LastTime: 100}}, req.LastLogTimes)
}

func TestService_ConnectedAppliesSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)

	st := h.status()
	assert.Equal(t, models.StatusConnected, st.Category)
	assert.Zero(t, st.ReconnectAttempt)

	sensors, err := h.svc.Sensors(context.Background())
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	assert.Equal(t, "temperature", sensors[0].Key)
	assert.Equal(t, "humidity", sensors[1].Key)
	assert.Equal(t, 21.0, *sensors[0].Record.DesiredValue)

	act, err := h.svc.Actuators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hsv", act["colorlight"]["mode"])

	assert.Equal(t, []string{"CONNECTING", "CONNECTED"}, h.events.states())
}

func TestService_ReconnectBackoffDoubles(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.nextTransport(t)
	h.handshake(t, tr)
	tr.Close()

	for i, delay := range []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond} {
		h.waitPending(t, delay)
		st := h.status()
		assert.Equal(t, models.Errored, st.State)
		assert.Equal(t, i+1, st.ReconnectAttempt)

		h.clock.Advance(delay)
		tr = h.nextTransport(t)
		h.handshake(t, tr)
		tr.Close()
	}

	h.waitPending(t, 1600*time.Millisecond)
	h.clock.Advance(1600 * time.Millisecond)
	tr = h.nextTransport(t)
	h.handshake(t, tr)
	tr.push(connectedFrame)
	h.waitState(t, models.Connected)
	assert.Zero(t, h.status().ReconnectAttempt)
}

func TestService_DialFailureBacksOff(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.dialer.dial = func(context.Context) (Transport, error) { return nil, errTransportClosed }
	})

	h.waitPending(t, 200*time.Millisecond)
	h.dialer.setDial(nil)
	h.clock.Advance(200 * time.Millisecond)
	h.handshake(t, h.nextTransport(t))
	assert.Equal(t, 2, h.dialer.count())
}

func TestService_HandshakeErrorIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.nextTransport(t)
	h.handshake(t, tr)
	tr.push(`{"message":"disconnected","error":"bad password"}`)

	require.Eventually(t, func() bool {
		st := h.status()
		return st.State == models.Errored && strings.Contains(st.Message, "bad password")
	}, waitFor, tick)
	assert.True(t, tr.isClosed())
	assert.Empty(t, h.clock.Pending())

	h.clock.Advance(2 * time.Minute)
	assert.Equal(t, models.Errored, h.status().State)
	assert.Equal(t, 1, h.dialer.count())

	require.NoError(t, h.svc.SetCredential(context.Background(), "better"))
	req := h.handshake(t, h.nextTransport(t))
	assert.Equal(t, "better", req.Credential)

	stored, ok, _ := h.cache.Get(context.Background(), repository.KeyCredential)
	assert.True(t, ok)
	assert.Equal(t, "better", stored)
}

func TestService_SetCredentialBypassesBackoff(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.nextTransport(t)
	h.handshake(t, tr)
	tr.Close()
	h.waitPending(t, 200*time.Millisecond)

	require.NoError(t, h.svc.SetCredential(context.Background(), "other"))
	h.handshake(t, h.nextTransport(t))
	assert.Zero(t, h.status().ReconnectAttempt)
	assert.Empty(t, h.clock.Pending())

	// The cancelled timer must not start a second session.
	h.clock.Advance(time.Second)
	h.status()
	assert.Equal(t, 2, h.dialer.count())
}

func TestService_SetCredentialWhileConnectedReconnects(t *testing.T) {
	h := newHarness(t, nil)
	old := h.connect(t)

	require.NoError(t, h.svc.SetCredential(context.Background(), "rotated"))
	require.Eventually(t, old.isClosed, waitFor, tick)

	req := h.handshake(t, h.nextTransport(t))
	assert.Equal(t, "rotated", req.Credential)
	assert.Empty(t, h.clock.Pending())
	assert.Zero(t, h.status().ReconnectAttempt)
}

func TestService_SetCredentialWhileDialing(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.dialer.dial = func(ctx context.Context) (Transport, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	})
	require.Eventually(t, func() bool { return h.dialer.count() == 1 }, waitFor, tick)
	h.dialer.setDial(nil)

	require.NoError(t, h.svc.SetCredential(context.Background(), "x"))
	req := h.handshake(t, h.nextTransport(t))
	assert.Equal(t, "x", req.Credential)
	assert.Zero(t, h.status().ReconnectAttempt)
	assert.Empty(t, h.clock.Pending())
}

func TestService_SetCredentialUnchangedIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.connect(t)

	require.NoError(t, h.svc.SetCredential(context.Background(), "s3cret"))
	assert.False(t, tr.isClosed())
	assert.Equal(t, 1, h.dialer.count())

	assert.ErrorIs(t, h.svc.SetCredential(context.Background(), ""), ErrEmptyCredential)
}

func TestService_LiveMessages(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.connect(t)

	tr.push(`{"message":"firmware","version":2}`)
	tr.push(`not json`)
	tr.push(`{"message":"log","sensor":"temperature","log":[{"time":1700000000,"interval":60,"value":21}]}`)
	tr.push(`{"message":"actuator","name":"colorlight","value":{"mode":"rgb"}}`)

	require.Eventually(t, func() bool {
		act, _ := h.svc.Actuators(context.Background())
		return act["colorlight"]["mode"] == "rgb"
	}, waitFor, tick)

	v, err := h.svc.Sensor(context.Background(), "temperature")
	require.NoError(t, err)
	assert.Len(t, v.Record.Log, 2)
	assert.Equal(t, models.Connected, h.status().State, "bad frames do not drop the connection")

	_, err = h.svc.Sensor(context.Background(), "garage")
	assert.ErrorIs(t, err, ErrUnknownSensor)
}

func TestService_EditActuatorSendsOnlyWhenConnected(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		require.NoError(t, h.cache.SaveJSON(context.Background(), repository.KeyActuators, models.ActuatorState{
			"colorlight": {"mode": "hsv"},
		}))
	})
	tr := h.nextTransport(t)
	h.handshake(t, tr)

	res, err := h.svc.EditActuator(context.Background(), "colorlight", "mode", "rgb")
	require.NoError(t, err)
	assert.Equal(t, EditResult{Changed: true}, res)
	assert.Len(t, tr.messages(), 1, "only the connect request")

	tr.push(connectedFrame)
	h.waitState(t, models.Connected)

	res, err = h.svc.EditActuator(context.Background(), "colorlight", "mode", "rgb")
	require.NoError(t, err)
	assert.Equal(t, EditResult{Changed: true, Sent: true}, res)

	msgs := tr.messages()
	require.Len(t, msgs, 2)
	upd := msgs[1].(models.ActuatorUpdate)
	assert.Equal(t, models.Attributes{"mode": "rgb", "value": 1.0}, upd.Value)

	inputs, err := h.svc.ActuatorInputs(context.Background(), "colorlight")
	require.NoError(t, err)
	assert.Equal(t, "rgb", inputs["mode"])
}

func TestService_KeepalivePing(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.connect(t)

	h.clock.Advance(pingPeriod)
	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.pings == 1
	}, waitFor, tick)
}

func TestService_ShutdownClosesConnection(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.connect(t)

	h.stop()
	assert.True(t, tr.isClosed())
	states := h.events.states()
	assert.Equal(t, "DISCONNECTED", states[len(states)-1])

	_, err := h.svc.Status(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestService_TabPreference(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tab, err := h.svc.Tab(ctx)
	require.NoError(t, err)
	assert.Empty(t, tab)

	require.NoError(t, h.svc.SetTab(ctx, "actuators"))
	tab, err = h.svc.Tab(ctx)
	require.NoError(t, err)
	assert.Equal(t, "actuators", tab)
}
