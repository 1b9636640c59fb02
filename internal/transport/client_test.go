package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// Spin up an in-process broker and return its address.
func setupBroker(t *testing.T) string {
	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "geo-test",
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { _ = server.Close() })

	return "tcp://" + addr
}

func TestClient_ConsumerEndToEnd(t *testing.T) {
	broker := setupBroker(t)
	logger := zap.NewNop()

	subscriber := NewClient(Config{Broker: broker, ClientID: "geo-consumer"}, logger)
	require.NoError(t, subscriber.Connect())
	t.Cleanup(subscriber.Disconnect)

	ingester := &fakeIngester{known: map[uint]bool{3: true}}
	consumer := NewConsumer(subscriber, ingester, nil, logger, ConsumerOptions{QoS: 1})
	require.NoError(t, consumer.Start())

	publisher := NewClient(Config{Broker: broker, ClientID: "geo-publisher"}, logger)
	require.NoError(t, publisher.Connect())
	t.Cleanup(publisher.Disconnect)
	require.True(t, publisher.IsConnected())

	payload, err := json.Marshal(Payload{Value: 0.42, Unit: "mm", Timestamp: "2024-05-01T12:00:00Z"})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish("geo/sensors/crack_width/3/data", 1, false, payload))
	require.NoError(t, publisher.Publish("geo/sensors/crack_width/3/status", 1, false, payload))

	require.Eventually(t, func() bool {
		return len(ingester.Calls()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	call := ingester.Calls()[0]
	require.Equal(t, uint(3), call.sensorID)
	require.Equal(t, 0.42, call.value)
	require.Equal(t, "mm", call.unit)

	require.NoError(t, consumer.Stop())
}
