package electrum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClientOptions(t *testing.T, peer *fakePeer) ClientOptions {
	t.Helper()
	host, port := splitTestAddr(t, peer.addr())
	return ClientOptions{
		Application: "electrum-test",
		Version:     Protocol12,
		Host:        host,
		Port:        port,
		TLS:         peer.tlsConfig(),
	}
}

func dialTestClient(t *testing.T, peer *fakePeer) *Client {
	t.Helper()
	client, err := New(newTestClientOptions(t, peer))
	require.NoError(t, err)

	go peer.accept()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		frame := peer.readLine()
		assert.Contains(t, frame, "server.version")
		peer.send(`{"id":"versionNegotiation","result":["TestServer 1.2","1.2"]}`)
	}()

	ok, err := client.Connect(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	<-done
	return client
}

func TestClientHandshake(t *testing.T) {
	t.Run("accepts matching version", func(t *testing.T) {
		peer := newFakePeer(t)
		client := dialTestClient(t, peer)
		defer client.Disconnect(true)
		assert.True(t, client.Connected())
	})

	t.Run("rejects mismatched version", func(t *testing.T) {
		peer := newFakePeer(t)
		client, err := New(newTestClientOptions(t, peer))
		require.NoError(t, err)

		go peer.accept()
		go func() {
			peer.readLine()
			peer.send(`{"id":"versionNegotiation","result":["TestServer 1.1","1.1"]}`)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, err := client.Connect(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
	})
}

func TestClientRequest(t *testing.T) {
	peer := newFakePeer(t)
	client := dialTestClient(t, peer)
	defer client.Disconnect(true)

	go func() {
		peer.readLine()
		peer.send(`{"id":"1","result":{"confirmed":100,"unconfirmed":0}}`)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	balance, err := client.AddressBalance(ctx, "1ErbiumBjW4ScHNhLCcNWK5fFsKFpsYpWb")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Confirmed)
}

func TestClientServerError(t *testing.T) {
	peer := newFakePeer(t)
	client := dialTestClient(t, peer)
	defer client.Disconnect(true)

	go func() {
		peer.readLine()
		peer.send(`{"id":"1","error":{"code":-1,"message":"unknown method"}}`)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := client.Request(ctx, "server.ping")
	require.NoError(t, err)
	require.True(t, res.IsError())
	assert.Equal(t, "unknown method", res.Error().Message)
}

func TestClientNotification(t *testing.T) {
	peer := newFakePeer(t)
	client := dialTestClient(t, peer)
	defer client.Disconnect(true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		peer.readLine()
		peer.send(`{"id":"1","result":{"block_height":100,"prev_block_hash":"abc","merkle_root":"def"}}`)
		peer.send(`{"method":"blockchain.headers.subscribe","params":[{"block_height":101,"prev_block_hash":"abc","merkle_root":"def"}]}`)
	}()

	headers, err := client.NotifyBlockHeaders(ctx)
	require.NoError(t, err)

	first := <-headers
	assert.Equal(t, uint64(100), first.BlockHeight)
	second := <-headers
	assert.Equal(t, uint64(101), second.BlockHeight)
	<-done
}

func TestClientDeprecatedMethods(t *testing.T) {
	peer := newFakePeer(t)
	client := dialTestClient(t, peer)
	defer client.Disconnect(true)

	_, err := client.UTXOAddress("deadbeef")
	assert.ErrorIs(t, err, ErrDeprecatedMethod)

	_, err = client.BlockChunk(1)
	assert.ErrorIs(t, err, ErrDeprecatedMethod)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = client.NotifyBlockNums(ctx)
	assert.ErrorIs(t, err, ErrDeprecatedMethod)
}

func TestClientDisconnectFailsPending(t *testing.T) {
	peer := newFakePeer(t)
	client := dialTestClient(t, peer)

	go peer.readLine()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Request(ctx, "server.ping")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	client.Disconnect(true)

	err := <-errCh
	assert.ErrorIs(t, err, ErrManualDisconnection)
}
