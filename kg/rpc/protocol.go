package rpc

import (
	"encoding/json"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/logindex"
	"github.com/wbrown/janus-kgstore/kg/service"
)

// JSON-RPC 2.0 Method Reference
//
// The RPC server exposes the fact-store service over a Unix domain
// socket, one newline-delimited JSON message per request or response.
//
//	Method       Params                                        Result
//	──────────   ───────────────────────────────────────────   ─────────────────────────
//	query        service.QueryRequest                          stream of QueryChunk
//	insert       service.InsertRequest                         service.InsertResult
//	wipe         service.WipeRequest (waitFor in nanoseconds)  service.WipeResult
//	queryFacts   FactsParams (any of subject/predicate/object) service.FactsResult
//	lookupSP     FactsParams (subject + predicate)             service.FactsResult
//	lookupPO     FactsParams (predicate + object)              service.FactsResult
//	status       (none)                                        storage.Stats
//
// query is the one streaming method: the server replies with zero or more
// responses carrying {"chunk": ...}, all with the request id, terminated
// by one {"done": true} response or by an error response. Every other
// method gets exactly one response.
//
// Error codes follow JSON-RPC 2.0:
//
//	-32700  Parse error (malformed JSON)
//	-32601  Method not found
//	-32602  Invalid params
//	-32603  Internal error (marshal failure)
//	-32000  Application error; the message is prefixed with the failed
//	        query stage (resolve/parse/evaluate/stream/cancelled) when
//	        one applies

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// QueryChunk is one streamed element of a query answer.
type QueryChunk struct {
	Chunk *service.QueryResult `json:"chunk,omitempty"`
	Done  bool                 `json:"done,omitempty"`
}

// FactsParams parameterizes the legacy lookup methods. Index selection is
// shared; which positions must be bound depends on the method.
type FactsParams struct {
	Index     logindex.Spec `json:"index"`
	Subject   *kg.KGID      `json:"subject,omitempty"`
	Predicate *kg.KGID      `json:"predicate,omitempty"`
	Object    *kg.KGValue   `json:"object,omitempty"`
}
