package connstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
)

func feedAll(t *testing.T, c *Connection, raw []byte) (*httpwire.Request, error) {
	t.Helper()
	req, ready, err := c.Feed(raw)
	if err != nil {
		return nil, err
	}
	if ready {
		return req, nil
	}
	return nil, nil
}

func feedByteByByte(t *testing.T, c *Connection, raw []byte) (*httpwire.Request, error) {
	t.Helper()
	for i, b := range raw {
		req, ready, err := c.Feed([]byte{b})
		if err != nil {
			return nil, err
		}
		if ready {
			require.Equal(t, len(raw)-1, i, "became ready before last byte was fed")
			return req, nil
		}
	}
	return nil, nil
}

func TestConnection_WholeVsByteByByte_SameResult(t *testing.T) {
	raw := []byte("POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")

	whole := New(1)
	reqWhole, err := feedAll(t, whole, raw)
	require.NoError(t, err)
	require.NotNil(t, reqWhole)

	piecemeal := New(2)
	reqPiece, err := feedByteByByte(t, piecemeal, raw)
	require.NoError(t, err)
	require.NotNil(t, reqPiece)

	assert.Equal(t, reqWhole.Method, reqPiece.Method)
	assert.Equal(t, reqWhole.URL, reqPiece.URL)
	assert.Equal(t, string(reqWhole.Body), string(reqPiece.Body))
	assert.Equal(t, "hello", string(reqWhole.Body))
}

func TestConnection_GETNoBody(t *testing.T) {
	c := New(1)
	req, ready, err := c.Feed([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, httpwire.GET, req.Method)
	assert.Equal(t, "/hello", req.URL)
	assert.Empty(t, req.Body)
}

func TestConnection_WaitsForMoreHeaderBytes(t *testing.T) {
	c := New(1)
	_, ready, err := c.Feed([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n"))
	require.NoError(t, err)
	assert.False(t, ready, "should wait rather than close when the terminator hasn't arrived yet")

	req, ready, err := c.Feed([]byte("\r\n"))
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "/hello", req.URL)
}

func TestConnection_WaitsForMoreBodyBytes(t *testing.T) {
	c := New(1)
	_, ready, err := c.Feed([]byte("POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel"))
	require.NoError(t, err)
	assert.False(t, ready)

	req, ready, err := c.Feed([]byte("lo"))
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "hello", string(req.Body))
}

func TestConnection_OversizeRequestIsProtocolViolation(t *testing.T) {
	c := New(1)
	junk := make([]byte, MaxIbuf+1)
	for i := range junk {
		junk[i] = 'a'
	}
	copy(junk, []byte("POST "))
	_, _, err := c.Feed(junk)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestConnection_NonHTTPPrefixIsProtocolViolation(t *testing.T) {
	c := New(1)
	_, _, err := c.Feed([]byte("NOTHTTP REQUEST HERE\r\n\r\n"))
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestConnection_ResponseInFlightUntilCleared(t *testing.T) {
	c := New(1)
	assert.False(t, c.ResponseInFlight())
	c.SetResponse([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	assert.True(t, c.ResponseInFlight())
	c.AdvanceResponse(len(c.PendingResponse()))
	assert.True(t, c.ResponseDone())
	c.ClearResponse()
	assert.False(t, c.ResponseInFlight())
}

func TestConnection_QueueResponseArmsImmediatelyWhenIdle(t *testing.T) {
	c := New(1)
	c.QueueResponse([]byte("HTTP/1.1 200 OK\r\n\r\nfirst"))
	assert.True(t, c.ResponseInFlight())
	assert.Equal(t, []byte("HTTP/1.1 200 OK\r\n\r\nfirst"), c.PendingResponse())
}

func TestConnection_QueueResponseDefersBehindInFlightResponse(t *testing.T) {
	c := New(1)
	c.SetResponse([]byte("first"))
	c.QueueResponse([]byte("second"))

	// the in-flight response is untouched by the queued one.
	assert.Equal(t, []byte("first"), c.PendingResponse())

	c.AdvanceResponse(len("first"))
	require.True(t, c.ResponseDone())
	c.ClearResponse()

	// finishing the first arms the queued one automatically.
	assert.Equal(t, []byte("second"), c.PendingResponse())
	assert.True(t, c.ResponseInFlight())
}

func TestConnection_QueueResponseMultipleDeferredInOrder(t *testing.T) {
	c := New(1)
	c.SetResponse([]byte("a"))
	c.QueueResponse([]byte("b"))
	c.QueueResponse([]byte("c"))

	for _, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, string(c.PendingResponse()))
		c.AdvanceResponse(len(want))
		require.True(t, c.ResponseDone())
		c.ClearResponse()
	}
	assert.False(t, c.ResponseInFlight())
}

func TestConnection_FinishRequestAllowsNextRequestOnSameConn(t *testing.T) {
	c := New(1)
	req1, ready, err := c.Feed([]byte("GET /a HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "/a", req1.URL)
	c.FinishRequest()

	req2, ready, err := c.Feed([]byte("GET /b HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "/b", req2.URL)
}
