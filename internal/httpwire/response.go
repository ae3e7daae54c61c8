package httpwire

import (
	"fmt"
	"strconv"
	"strings"
)

// reasonPhrases covers the status codes the core itself generates;
// handlers may set Reason explicitly for anything else.
var reasonPhrases = map[int]string{
	200: "OK",
	202: "Accepted",
	404: "Not Found",
	413: "Payload Too Large",
	500: "Internal Server Error",
}

// Response is an HTTP/1.1 response: status line, headers, body. Encode
// produces the wire bytes spec.md §6 describes: status line, CRLF headers,
// blank line, body.
type Response struct {
	Status  int
	Reason  string
	Headers Header
	Body    []byte
}

// NewResponse builds a response with a default reason phrase (if known)
// and a Content-Length header sized to body.
func NewResponse(status int, body []byte) Response {
	r := Response{
		Status:  status,
		Reason:  reasonPhrases[status],
		Headers: NewHeader(),
		Body:    body,
	}
	r.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	return r
}

// NotFound is the synthetic 404 spec.md §4.4 mandates for an unmatched
// route: empty headers, no body.
func NotFound() Response {
	return Response{Status: 404, Reason: reasonPhrases[404], Headers: NewHeader()}
}

// Encode renders the response as wire bytes.
func (r Response) Encode() []byte {
	var b strings.Builder
	reason := r.Reason
	if reason == "" {
		reason = reasonPhrases[r.Status]
	}
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, reason)
	r.Headers.Each(func(name, value string) {
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	})
	b.WriteString("\r\n")
	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out
}
