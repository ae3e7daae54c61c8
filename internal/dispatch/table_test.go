package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/reactorhttp/internal/broker"
	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
)

func ok200(body string) Handler {
	return func(req *httpwire.Request, emit broker.EmitFunc) httpwire.Response {
		return httpwire.NewResponse(200, []byte(body))
	}
}

func TestTable_ExactMatch(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(httpwire.GET, "/hello", ok200("hi")))

	req := &httpwire.Request{Method: httpwire.GET, URL: "/hello"}
	resp := tbl.Dispatch("/hello", req, nil)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hi", string(resp.Body))
}

func TestTable_UnmatchedURLYields404(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(httpwire.GET, "/hello", ok200("hi")))

	req := &httpwire.Request{Method: httpwire.GET, URL: "/nope"}
	resp := tbl.Dispatch("/nope", req, nil)
	assert.Equal(t, 404, resp.Status)
	assert.Empty(t, resp.Body)
}

func TestTable_WildcardPrefixMatch(t *testing.T) {
	tbl := NewTable()
	var gotURL string
	require.NoError(t, tbl.Register(httpwire.GET, "/static/*", func(req *httpwire.Request, emit broker.EmitFunc) httpwire.Response {
		gotURL = req.URL
		return httpwire.NewResponse(200, nil)
	}))

	req := &httpwire.Request{Method: httpwire.GET, URL: "/static/app.js"}
	tbl.Dispatch("/static/app.js", req, nil)
	assert.Equal(t, "/static/app.js", gotURL)
}

func TestTable_EmptyPatternRejected(t *testing.T) {
	tbl := NewTable()
	err := tbl.Register(httpwire.GET, "", ok200(""))
	assert.ErrorIs(t, err, ErrInvalidRoute)
}

func TestTable_DuplicateRegistrationRejected(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(httpwire.GET, "/x", ok200("a")))
	err := tbl.Register(httpwire.GET, "/x", ok200("b"))
	assert.ErrorIs(t, err, ErrRouteConflict)
}

func TestTable_RegisterUnregisterRegisterLeavesLatestActive(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(httpwire.GET, "/p", ok200("first")))
	tbl.Unregister(httpwire.GET, "/p")
	require.NoError(t, tbl.Register(httpwire.GET, "/p", ok200("second")))

	req := &httpwire.Request{Method: httpwire.GET, URL: "/p"}
	resp := tbl.Dispatch("/p", req, nil)
	assert.Equal(t, "second", string(resp.Body))
}

func TestTable_MethodIsolation(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(httpwire.GET, "/only-get", ok200("g")))

	req := &httpwire.Request{Method: httpwire.POST, URL: "/only-get"}
	resp := tbl.Dispatch("/only-get", req, nil)
	assert.Equal(t, 404, resp.Status)
}

func TestTable_HandlerPanicRecoveredAs500(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(httpwire.GET, "/boom", func(req *httpwire.Request, emit broker.EmitFunc) httpwire.Response {
		panic("handler exploded")
	}))

	req := &httpwire.Request{Method: httpwire.GET, URL: "/boom"}
	resp := tbl.Dispatch("/boom", req, nil)
	assert.Equal(t, 500, resp.Status)

	// the table itself must still be usable afterwards.
	require.NoError(t, tbl.Register(httpwire.GET, "/fine", ok200("ok")))
	resp = tbl.Dispatch("/fine", &httpwire.Request{Method: httpwire.GET, URL: "/fine"}, nil)
	assert.Equal(t, 200, resp.Status)
}
