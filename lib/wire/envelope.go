// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/ticketd/lib/codec"
)

// Reserved command names. Server handlers and client builders share
// these so the verb set is defined once.
const (
	CommandHelp          = "help"
	CommandInfo          = "info"
	CommandShow          = "show"
	CommandAdd           = "add"
	CommandUpdate        = "update"
	CommandRemoveByID    = "remove_by_id"
	CommandClear         = "clear"
	CommandRemoveFirst   = "remove_first"
	CommandRemoveHead    = "remove_head"
	CommandAddIfMin      = "add_if_min"
	CommandSumOfPrice    = "sum_of_price"
	CommandMinByDiscount = "min_by_discount"
	CommandMaxByName     = "max_by_name"
	CommandHistory       = "history"
	CommandExecuteScript = "execute_script"
	CommandLogin         = "login"
	CommandRegister      = "register"
	CommandExit          = "exit"
	CommandSave          = "save"
	CommandPing          = "ping"
)

// Commands lists every reserved verb in presentation order.
var Commands = []string{
	CommandHelp, CommandInfo, CommandShow, CommandAdd, CommandUpdate,
	CommandRemoveByID, CommandClear, CommandRemoveFirst, CommandRemoveHead,
	CommandAddIfMin, CommandSumOfPrice, CommandMinByDiscount,
	CommandMaxByName, CommandHistory, CommandExecuteScript, CommandLogin,
	CommandRegister, CommandExit, CommandSave, CommandPing,
}

// MessageMalformed is the generic failure message for a frame that
// could not be decoded into a Request.
const MessageMalformed = "malformed request"

// ErrMalformedEnvelope is returned (wrapped) when bytes cannot be
// decoded into an envelope or a payload body.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Request is one client call.
//
// Success is the caller-side validity marker: clients set it once the
// request has been fully built. UserID is filled by the server after
// authentication; the server discards any value a client sends.
type Request struct {
	Success  bool     `cbor:"success"`
	Command  string   `cbor:"command"`
	Data     *Payload `cbor:"data,omitempty"`
	Login    string   `cbor:"login,omitempty"`
	Password string   `cbor:"password,omitempty"`
	UserID   *int64   `cbor:"user_id,omitempty"`
}

// ResolvedUserID returns the server-attached user id, or 0 when the
// request is unauthenticated.
func (r *Request) ResolvedUserID() int64 {
	if r.UserID == nil {
		return 0
	}
	return *r.UserID
}

// SetUserID attaches a resolved identity.
func (r *Request) SetUserID(id int64) {
	r.UserID = &id
}

// Response is the single answer to a Request.
type Response struct {
	Success bool     `cbor:"success"`
	Message string   `cbor:"message,omitempty"`
	Data    *Payload `cbor:"data,omitempty"`
}

// OK builds a successful response. data may be nil.
func OK(message string, data *Payload) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Fail builds a failure response carrying only a message.
func Fail(message string) Response {
	return Response{Success: false, Message: message}
}

// Failf builds a failure response with a formatted message.
func Failf(format string, args ...any) Response {
	return Fail(fmt.Sprintf(format, args...))
}

// FailWith builds a failure response that also carries data, e.g. the
// current minimum when add_if_min declines to insert.
func FailWith(message string, data *Payload) Response {
	return Response{Success: false, Message: message, Data: data}
}

// EncodeRequest serializes a request.
func EncodeRequest(request Request) ([]byte, error) {
	data, err := codec.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding request %q: %w", request.Command, err)
	}
	return data, nil
}

// EncodeResponse serializes a response.
func EncodeResponse(response Response) ([]byte, error) {
	data, err := codec.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return data, nil
}

// DecodeRequest parses one request. Malformed or truncated input fails
// with an error wrapping ErrMalformedEnvelope.
func DecodeRequest(data []byte) (Request, error) {
	var request Request
	if err := decodeEnvelope(data, &request); err != nil {
		return Request{}, err
	}
	return request, nil
}

// DecodeResponse parses one response.
func DecodeResponse(data []byte) (Response, error) {
	var response Response
	if err := decodeEnvelope(data, &response); err != nil {
		return Response{}, err
	}
	return response, nil
}

func decodeEnvelope(data []byte, target any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrMalformedEnvelope)
	}
	if err := codec.Wellformed(data); err != nil {
		return fmt.Errorf("%w: not a single CBOR item: %v", ErrMalformedEnvelope, err)
	}
	if err := codec.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}
