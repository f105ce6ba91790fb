package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/toolwire/pkg/mcpclient"
	"github.com/harun/toolwire/pkg/mcpclient/mcpclienttest"
)

type recordingFactory struct {
	created []*mcpclienttest.Client
	failFor string
}

func (f *recordingFactory) build(kind mcpclient.Kind, endpoint string) (mcpclient.Client, error) {
	c := mcpclienttest.New(endpoint)
	c.KindValue = kind
	if endpoint == f.failFor {
		c.ConnectErr = errors.New("connection refused")
	}
	f.created = append(f.created, c)
	return c, nil
}

func TestAcquireReusesSameKey(t *testing.T) {
	f := &recordingFactory{}
	mgr := New(f.build)
	defer mgr.Close()

	first, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://a/ws")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, " ws://a/ws ")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, f.created, 1)
}

func TestAcquireSwapClosesPrevious(t *testing.T) {
	f := &recordingFactory{}
	mgr := New(f.build)
	defer mgr.Close()

	first, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://a/ws")
	require.NoError(t, err)

	second, err := mgr.Acquire(context.Background(), mcpclient.KindHTTP, "ws://a/ws")
	require.NoError(t, err)

	require.Len(t, f.created, 2)
	assert.Equal(t, 1, f.created[0].Closes())
	assert.False(t, first.Client.Connected())
	assert.True(t, second.Client.Connected())
	assert.Equal(t, Key{Kind: mcpclient.KindHTTP, Endpoint: "ws://a/ws"}, mgr.Current().Key)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAcquireFailureLeavesSlotEmpty(t *testing.T) {
	f := &recordingFactory{failFor: "ws://down/ws"}
	mgr := New(f.build)

	_, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://a/ws")
	require.NoError(t, err)

	_, err = mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://down/ws")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpclient.ErrNotConnected)
	assert.Nil(t, mgr.Current())

	// the previous session was closed before the failed attempt
	assert.Equal(t, 1, f.created[0].Closes())
}

func TestAcquireReconnectsDroppedSession(t *testing.T) {
	f := &recordingFactory{}
	mgr := New(f.build)
	defer mgr.Close()

	sess, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://a/ws")
	require.NoError(t, err)
	_ = sess.Client.Close()

	again, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://a/ws")
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.True(t, again.Client.Connected())
	assert.Equal(t, 2, f.created[0].Connects())
}

func TestAcquireRejectsEmptyEndpoint(t *testing.T) {
	mgr := New(nil)
	_, err := mgr.Acquire(context.Background(), mcpclient.KindHTTP, "  ")
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := &recordingFactory{}
	mgr := New(f.build)

	_, err := mgr.Acquire(context.Background(), mcpclient.KindSocket, "ws://a/ws")
	require.NoError(t, err)

	assert.NoError(t, mgr.Close())
	assert.NoError(t, mgr.Close())
	assert.Nil(t, mgr.Current())
	assert.Equal(t, 1, f.created[0].Closes())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "sse http://h/sse", Key{Kind: mcpclient.KindStream, Endpoint: "http://h/sse"}.String())
}
