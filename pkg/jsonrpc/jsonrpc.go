// Package jsonrpc implements the JSON-RPC 2.0 data model used by the
// query server: requests, responses, errors, and request validation.
//
// Only single request objects are modelled. Batch requests are rejected
// at the transport layer before deserialization.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Version is the only protocol version accepted in the jsonrpc field.
const Version = "2.0"

// Request is a single JSON-RPC 2.0 request or notification.
// A request with no id (or a null id) is a notification and must never
// receive a response body.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// wireRequest mirrors Request with pointer fields so that absent
// jsonrpc/method fields can be told apart from empty ones.
type wireRequest struct {
	JSONRPC *string         `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// DecodeRequest strictly deserializes a single request object.
// Unknown fields and missing required fields are rejected; the returned
// error text is suitable as the data payload of an invalid-request error.
func DecodeRequest(data []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire wireRequest
	if err := dec.Decode(&wire); err != nil {
		return nil, err
	}
	if wire.JSONRPC == nil {
		return nil, errors.New("missing field 'jsonrpc'")
	}
	if wire.Method == nil {
		return nil, errors.New("missing field 'method'")
	}

	req := &Request{JSONRPC: *wire.JSONRPC, Method: *wire.Method}
	if !isJSONNull(wire.Params) {
		req.Params = wire.Params
	}
	// A null id is treated the same as an absent one: notification.
	if !isJSONNull(wire.ID) {
		req.ID = wire.ID
	}
	return req, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Validate checks the protocol-level constraints on a decoded request.
func (r *Request) Validate() *Error {
	if r.JSONRPC != Version {
		return InvalidRequest("jsonrpc field must be '2.0'")
	}
	if strings.TrimSpace(r.Method) == "" {
		return InvalidRequest("method must not be empty")
	}
	return nil
}

// Response is a single JSON-RPC 2.0 response. Exactly one of Result and
// Error is set; the id field always serializes, as null when absent.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Success builds a success response carrying the given result.
// A nil result serializes as a JSON null result, not an absent one.
func Success(id json.RawMessage, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return Failure(id, Internal("failed to encode result: "+err.Error()))
	}
	return &Response{JSONRPC: Version, Result: raw, ID: id}
}

// Failure builds an error response.
func Failure(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: Version, Error: rpcErr, ID: id}
}
