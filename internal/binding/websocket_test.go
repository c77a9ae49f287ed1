package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhttp/strand/internal/observability"
)

func TestWebSocketSendVariants(t *testing.T) {
	t.Parallel()

	sock := &fakeSocket{}
	ws := newWebSocket(sock, observability.NopMetrics())

	require.NoError(t, ws.SendText("hello"))
	require.NoError(t, ws.SendBinary([]byte{0x01, 0x02}))
	require.NoError(t, ws.Send([]byte("raw"), false))

	require.Len(t, sock.sent, 3)
	assert.Equal(t, []byte("hello"), sock.sent[0])
	assert.Equal(t, []byte{0x01, 0x02}, sock.sent[1])
	assert.Equal(t, []byte("raw"), sock.sent[2])
}

func TestWebSocketTopics(t *testing.T) {
	t.Parallel()

	sock := &fakeSocket{}
	ws := newWebSocket(sock, nil)

	ws.Subscribe("chat")
	ws.Subscribe("news")
	ws.Unsubscribe("chat")

	assert.Equal(t, []string{"chat", "news"}, sock.subs)
	assert.Equal(t, []string{"chat"}, sock.unsubs)
}

func TestWebSocketClose(t *testing.T) {
	t.Parallel()

	sock := &fakeSocket{}
	ws := newWebSocket(sock, nil)
	ws.Close()
	assert.True(t, sock.closed)
}

func TestWebSocketRemoteAddr(t *testing.T) {
	t.Parallel()

	ws := newWebSocket(&fakeSocket{}, nil)
	assert.Equal(t, "203.0.113.9:4712", ws.RemoteAddr())
}

func TestWebSocketPublishText(t *testing.T) {
	t.Parallel()

	sock := &fakeSocket{}
	ws := newWebSocket(sock, observability.NopMetrics())
	ws.PublishText("chat", "fanout")
	ws.Publish("chat", []byte("binary"), true)
}
