package daemonproto

import (
	"context"
	"encoding/json"
)

// HandlerFunc processes a decoded Request and returns either a result to be
// marshaled into Response.Result, or an error. Errors are turned into
// runtime_error responses by Dispatch unless they are a *CodedError.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// CodedError lets a handler pick a specific error code instead of the
// default runtime_error.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string { return e.Message }

// Table is the method -> handler dispatch table. It is built fresh per
// daemon-host instance (handlers close over that instance's Runtime) and
// also used directly by unit tests, per the teacher's table-driven dispatch
// idiom.
type Table map[string]HandlerFunc

// Dispatch decodes raw into a Request, looks it up in the table, and runs
// the matching handler, producing a Response that is always safe to
// marshal and write back to the caller exactly once.
func Dispatch(ctx context.Context, table Table, raw []byte) Response {
	if len(raw) == 0 {
		return ErrResponse("", ErrCodeEmptyRequest, "empty request")
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return ErrResponse("", ErrCodeInvalidJSON, err.Error())
	}

	handler, ok := table[req.Method]
	if !ok {
		return ErrResponse(req.ID, ErrCodeUnknownMethod, "unknown method: "+req.Method)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		if coded, ok := err.(*CodedError); ok {
			return ErrResponse(req.ID, coded.Code, coded.Message)
		}
		return ErrResponse(req.ID, ErrCodeRuntimeError, err.Error())
	}

	resp, err := OKResponse(req.ID, result)
	if err != nil {
		return ErrResponse(req.ID, ErrCodeRuntimeError, err.Error())
	}
	return resp
}
