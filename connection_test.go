package electrum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T, peer *fakePeer, keepAlive time.Duration) *Connection {
	t.Helper()
	host, port := splitTestAddr(t, peer.addr())
	conn, err := NewConnection(ConnectionOptions{
		Application: "electrum-test",
		Version:     Protocol12,
		Host:        host,
		Port:        port,
		KeepAlive:   keepAlive,
		TLSConfig:   peer.tlsConfig(),
		Hooks:       NewHooks(nil),
	})
	require.NoError(t, err)
	return conn
}

func TestConnectionConnectAndSend(t *testing.T) {
	peer := newFakePeer(t)
	conn := newTestConnection(t, peer, 0)

	received := make(chan string, 1)
	go peer.accept()

	require.NoError(t, conn.Connect(func(s string) { received <- s }))
	defer conn.Disconnect(true)

	require.NoError(t, conn.Send(`{"id":1,"method":"server.ping"}`))
	assert.Equal(t, `{"id":1,"method":"server.ping"}`, peer.readLine())

	peer.send(`{"id":1,"result":null}`)
	assert.Equal(t, `{"id":1,"result":null}`, <-received)
}

func TestConnectionSendBeforeConnect(t *testing.T) {
	peer := newFakePeer(t)
	conn := newTestConnection(t, peer, 0)
	assert.ErrorIs(t, conn.Send("anything"), ErrNotConnected)
}

func TestConnectionDisconnectIsIdempotent(t *testing.T) {
	peer := newFakePeer(t)
	conn := newTestConnection(t, peer, 0)
	go peer.accept()
	require.NoError(t, conn.Connect(func(string) {}))

	assert.True(t, conn.Disconnect(false))
	assert.False(t, conn.Disconnect(false))
}

func TestConnectionKeepAlive(t *testing.T) {
	peer := newFakePeer(t)
	conn := newTestConnection(t, peer, 20*time.Millisecond)
	go peer.accept()
	require.NoError(t, conn.Connect(func(string) {}))
	defer conn.Disconnect(true)

	frame := peer.readLine()
	assert.Contains(t, frame, "server.ping")
	assert.Contains(t, frame, "keepAlive")
}

func TestConnectionClosedChannel(t *testing.T) {
	peer := newFakePeer(t)
	conn := newTestConnection(t, peer, 0)
	go peer.accept()
	require.NoError(t, conn.Connect(func(string) {}))

	select {
	case <-conn.Closed():
		t.Fatal("closed channel fired before teardown")
	default:
	}

	conn.Disconnect(true)
	select {
	case <-conn.Closed():
	case <-time.After(time.Second):
		t.Fatal("closed channel did not fire after teardown")
	}
}
