package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/logindex"
	"github.com/wbrown/janus-kgstore/kg/service"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

// Client talks to a Server over its Unix domain socket.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the RPC server at the given socket path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// send writes one request and returns its id. Caller must hold c.mu.
func (c *Client) send(method string, params interface{}) (int, error) {
	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("rpc: marshal params: %w", err)
	}
	req := Request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsData}
	if err := c.encoder.Encode(req); err != nil {
		return 0, fmt.Errorf("rpc: send: %w", err)
	}
	return id, nil
}

// recv reads one response. Caller must hold c.mu.
func (c *Client) recv() (*Response, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("rpc: read: %w", err)
		}
		return nil, fmt.Errorf("rpc: connection closed")
	}
	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("rpc: unmarshal response: %w", err)
	}
	return &resp, nil
}

// call performs one request/response round trip.
func (c *Client) call(method string, params, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.send(method, params); err != nil {
		return err
	}
	resp, err := c.recv()
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("rpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// Query streams a query answer, invoking onChunk for every chunk until
// the server reports completion. An onChunk error abandons the stream by
// closing the connection, which is how a consumer cancels mid-answer.
func (c *Client) Query(req service.QueryRequest, onChunk func(service.QueryResult) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.send("query", req); err != nil {
		return err
	}
	for {
		resp, err := c.recv()
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}
		var chunk QueryChunk
		if err := json.Unmarshal(resp.Result, &chunk); err != nil {
			return fmt.Errorf("rpc: unmarshal chunk: %w", err)
		}
		if chunk.Done {
			return nil
		}
		if chunk.Chunk == nil {
			return fmt.Errorf("rpc: malformed query stream element")
		}
		if err := onChunk(*chunk.Chunk); err != nil {
			c.conn.Close()
			return err
		}
	}
}

// Insert submits a facts payload.
func (c *Client) Insert(req service.InsertRequest) (service.InsertResult, error) {
	var res service.InsertResult
	err := c.call("insert", req, &res)
	return res, err
}

// Wipe destroys the dataset after the request's grace delay.
func (c *Client) Wipe(req service.WipeRequest) (service.WipeResult, error) {
	var res service.WipeResult
	err := c.call("wipe", req, &res)
	return res, err
}

// QueryFacts performs the legacy pattern lookup.
func (c *Client) QueryFacts(index logindex.Spec, subject, predicate *kg.KGID, object *kg.KGValue) (service.FactsResult, error) {
	var res service.FactsResult
	err := c.call("queryFacts", FactsParams{
		Index: index, Subject: subject, Predicate: predicate, Object: object,
	}, &res)
	return res, err
}

// LookupSP performs the legacy subject/predicate lookup.
func (c *Client) LookupSP(index logindex.Spec, subject, predicate kg.KGID) (service.FactsResult, error) {
	var res service.FactsResult
	err := c.call("lookupSP", FactsParams{Index: index, Subject: &subject, Predicate: &predicate}, &res)
	return res, err
}

// LookupPO performs the legacy predicate/object lookup.
func (c *Client) LookupPO(index logindex.Spec, predicate kg.KGID, object kg.KGValue) (service.FactsResult, error) {
	var res service.FactsResult
	err := c.call("lookupPO", FactsParams{Index: index, Predicate: &predicate, Object: &object}, &res)
	return res, err
}

// Status reports store metadata.
func (c *Client) Status() (storage.Stats, error) {
	var res storage.Stats
	err := c.call("status", nil, &res)
	return res, err
}
