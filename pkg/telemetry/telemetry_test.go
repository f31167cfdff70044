package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/engine"
	"github.com/opd-ai/go-dronesim/pkg/input"
	"github.com/opd-ai/go-dronesim/pkg/network"
	"github.com/opd-ai/go-dronesim/pkg/physics"
)

type recorder struct {
	mu      sync.Mutex
	samples []Sample
	err     error
	closed  bool
}

func (r *recorder) Publish(_ context.Context, s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.samples = append(r.samples, s)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func newRelay(t *testing.T, interval time.Duration) *Relay {
	t.Helper()
	r, err := NewRelay(interval, nil, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return r
}

func TestFromSnapshot(t *testing.T) {
	snap := engine.Snapshot{
		Frame:    7,
		Time:     0.5,
		Position: mgl64.Vec3{1, 2, 3},
		Heading:  45,
		Attitude: physics.EulerAngles{Yaw: 45},
		Velocity: mgl64.Vec3{0, 0, -1},
		Regimes:  [3]physics.Regime{physics.RegimeIdle, physics.RegimeIdle, physics.RegimeAccelerate},
		Camera:   mgl64.Vec3{0, 7, -7},
		Intent:   input.Intent{SurgeZ: -1},
	}
	s := FromSnapshot("abc", snap)
	assert.Equal(t, [3]float64{1, 2, 3}, s.Position)
	assert.Equal(t, [3]string{"idle", "idle", "accelerate"}, s.Regimes)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessionId":"abc"`)
	assert.Contains(t, string(data), `"attitude":{"yaw":45,"pitch":0,"roll":0}`)
}

func TestRelay_Offer(t *testing.T) {
	r := newRelay(t, 100*time.Millisecond)
	rec := &recorder{}
	r.Add("rec", rec)
	ctx := context.Background()
	t0 := time.Unix(100, 0)

	assert.True(t, r.Offer(ctx, Sample{Frame: 1}, t0), "first sample always goes out")
	assert.False(t, r.Offer(ctx, Sample{Frame: 2}, t0.Add(50*time.Millisecond)))
	assert.True(t, r.Offer(ctx, Sample{Frame: 3}, t0.Add(100*time.Millisecond)))
	require.Equal(t, 2, rec.count())
	assert.Equal(t, uint64(3), rec.samples[1].Frame)
}

func TestRelay_FailingSinkDoesNotBlockOthers(t *testing.T) {
	r := newRelay(t, 0)
	bad := &recorder{err: errors.New("broker down")}
	good := &recorder{}
	r.Add("bad", bad)
	r.Add("good", good)

	err := r.Publish(context.Background(), Sample{Frame: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: broker down")
	assert.Equal(t, 1, good.count())
	assert.Equal(t, []string{"bad", "good"}, r.Sinks())

	require.NoError(t, r.Close())
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
	assert.Empty(t, r.Sinks())
}

func TestHub_PoseEndpoint(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/pose")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, hub.Publish(context.Background(), Sample{Frame: 9, Heading: 90}))

	resp, err = http.Get(srv.URL + "/api/pose")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got Sample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, uint64(9), got.Frame)
	assert.Equal(t, 90.0, got.Heading)
}

func TestHub_WebSocketBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	ctx := context.Background()

	require.NoError(t, hub.Publish(ctx, Sample{Frame: 1}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Sample {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var s Sample
		require.NoError(t, conn.ReadJSON(&s))
		return s
	}

	assert.Equal(t, uint64(1), read().Frame, "latest sample is replayed on connect")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, Sample{Frame: 2}))
	assert.Equal(t, uint64(2), read().Frame)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())
	assert.ErrorIs(t, hub.Publish(ctx, Sample{Frame: 3}), ErrClosed)
	require.NoError(t, hub.Close())
}

func TestHub_ConnectLimit(t *testing.T) {
	hub := NewHub(nil, network.NewLimiter(1, time.Hour))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

type fakeToken struct {
	mqtt.Token
	err   error
	ready bool
}

func (f *fakeToken) Wait() bool                     { return f.ready }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return f.ready }
func (f *fakeToken) Error() error                   { return f.err }

type fakeClient struct {
	mqtt.Client
	mu           sync.Mutex
	topics       []string
	payloads     [][]byte
	retained     []bool
	err          error
	disconnected int
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.topics = append(f.topics, topic)
		f.payloads = append(f.payloads, payload.([]byte))
		f.retained = append(f.retained, retained)
	}
	return &fakeToken{err: f.err, ready: true}
}

func (f *fakeClient) IsConnected() bool { return f.disconnected == 0 }

func (f *fakeClient) Disconnect(uint) { f.disconnected++ }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	cfg := config.DefaultConfig().Telemetry.MQTT
	p := NewMQTTPublisher(client, cfg, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, Sample{Frame: 4}))
	require.Len(t, client.topics, 1)
	assert.Equal(t, "dronesim/pose", client.topics[0])
	assert.True(t, client.retained[0])

	var got Sample
	require.NoError(t, json.Unmarshal(client.payloads[0], &got))
	assert.Equal(t, uint64(4), got.Frame)

	assert.True(t, p.Connected())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, client.disconnected)
	assert.ErrorIs(t, p.Publish(ctx, Sample{}), ErrClosed)
}

func TestMQTTPublisher_BreakerOpens(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	breaker := network.NewBreaker("mqtt", config.BreakerConfig{
		MaxRequests:         1,
		TimeoutMS:           60000,
		MaxConsecutiveFails: 2,
	}, nil)
	p := NewMQTTPublisher(client, config.MQTTConfig{}, breaker, nil)
	ctx := context.Background()

	assert.Equal(t, defaultTopic, p.Topic())
	assert.Error(t, p.Publish(ctx, Sample{}))
	assert.Error(t, p.Publish(ctx, Sample{}))
	assert.ErrorIs(t, p.Publish(ctx, Sample{}), network.ErrOpen)
	assert.Same(t, breaker, p.Breaker())
}

func TestDialMQTT_RequiresBroker(t *testing.T) {
	_, err := DialMQTT(context.Background(), config.MQTTConfig{}, nil, nil)
	assert.Error(t, err)
}
