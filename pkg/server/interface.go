/*
Package server implements msgpack IPC for kana-kanji conversion sessions.

Clients write a stream of msgpack maps to stdin and read replies from stdout.
Every request carries a client chosen ID that is echoed in its reply. Editing
state lives in server side sessions addressed by the handle returned from
"create".

A typical exchange:

	{"id": "1", "op": "create"}
	{"id": "1", "status": "ok", "sid": "s1"}

	{"id": "2", "op": "insert", "sid": "s1", "text": "seido"}
	{"id": "2", "status": "ok", "sid": "s1", "buf": "seido", "kana": "せいど", "cur": 5}

	{"id": "3", "op": "candidates", "sid": "s1", "n": 5}
	{"id": "3", "status": "ok", "sid": "s1", "s": [{"t": "制度", "c": 5, "r": 1}, {"t": "精度", "c": 5, "r": 2}], "n": 2, "t": 412}

Candidate requests run asynchronously. A second "candidates", an edit, or
"stop" on the same session supersedes the running one, and the superseded
request receives no reply at all.

Failures are reported as {"id", "e", "c"} where c is one of 400 (bad request
or invalid input), 404 (unknown session), 422 (dictionary or weight load
failure), 429 (session limit), 499 (cancelled before the search finished)
or 500 (engine fault).
*/
package server

import "github.com/bastiangx/kanaserve/pkg/convert"

// Operations accepted in Request.Op.
const (
	OpCreate         = "create"
	OpDestroy        = "destroy"
	OpInsert         = "insert"
	OpDeleteForward  = "delete_forward"
	OpDeleteBackward = "delete_backward"
	OpMove           = "move"
	OpCandidates     = "candidates"
	OpStop           = "stop"
	OpState          = "state"
	OpHealth         = "health"
)

// Request is one client message.
type Request struct {
	ID        string `msgpack:"id"`
	Op        string `msgpack:"op"`
	SessionID string `msgpack:"sid,omitempty"`
	Text      string `msgpack:"text,omitempty"`
	// N is the unit count for deletes, the cursor delta for move and the
	// candidate limit for candidates.
	N          int    `msgpack:"n,omitempty"`
	Context    string `msgpack:"ctx,omitempty"`
	Dictionary string `msgpack:"dict,omitempty"`
	Weights    string `msgpack:"w,omitempty"`
}

// Response is a successful reply.
type Response struct {
	ID          string              `msgpack:"id"`
	Status      string              `msgpack:"status"`
	SessionID   string              `msgpack:"sid,omitempty"`
	Suggestions []convert.Candidate `msgpack:"s,omitempty"`
	Count       int                 `msgpack:"n"`
	TimeTaken   int64               `msgpack:"t,omitempty"`
	Buffer      string              `msgpack:"buf,omitempty"`
	Kana        string              `msgpack:"kana,omitempty"`
	Cursor      int                 `msgpack:"cur"`
	State       string              `msgpack:"st,omitempty"`
	Stats       map[string]int      `msgpack:"stats,omitempty"`
}

// ErrorResponse holds basic error information for a failed request.
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
