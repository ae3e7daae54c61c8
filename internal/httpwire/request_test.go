package httpwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestParser_ParsesRequestLineAndHeaders(t *testing.T) {
	p := NewRequestParser()
	raw := "GET /hello HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\n"
	require.NoError(t, p.Parse([]byte(raw)))
	require.True(t, p.Parsed())

	req := p.Request()
	assert.Equal(t, GET, req.Method)
	assert.Equal(t, "/hello", req.URL)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	n, ok := req.ContentLength()
	assert.True(t, ok)
	assert.Equal(t, 5, n)
}

func TestRequestParser_HeaderLookupCaseInsensitive(t *testing.T) {
	p := NewRequestParser()
	require.NoError(t, p.Parse([]byte("POST /echo HTTP/1.1\r\ncontent-length: 10\r\n\r\n")))
	n, ok := p.Request().ContentLength()
	assert.True(t, ok)
	assert.Equal(t, 10, n)
}

func TestRequestParser_RejectsUnsupportedMethod(t *testing.T) {
	p := NewRequestParser()
	err := p.Parse([]byte("FOO /bar HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestRequestParser_RejectsTransferEncoding(t *testing.T) {
	p := NewRequestParser()
	err := p.Parse([]byte("POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"))
	assert.ErrorIs(t, err, ErrTransferEncodingUnsupported)
}

func TestRequestParser_RejectsMalformedRequestLine(t *testing.T) {
	p := NewRequestParser()
	err := p.Parse([]byte("GET\r\n\r\n"))
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestRequestParser_Reset(t *testing.T) {
	p := NewRequestParser()
	require.NoError(t, p.Parse([]byte("GET / HTTP/1.1\r\n\r\n")))
	require.True(t, p.Parsed())
	p.Reset()
	assert.False(t, p.Parsed())
}

func TestLooksLikeMethodPrefix(t *testing.T) {
	assert.True(t, LooksLikeMethodPrefix("GET /ab"))
	assert.True(t, LooksLikeMethodPrefix("OPTIONS"))
	assert.False(t, LooksLikeMethodPrefix("ZZZZZZZ"))
}
