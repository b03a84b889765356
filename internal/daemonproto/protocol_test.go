package daemonproto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_EmptyRequest(t *testing.T) {
	resp := Dispatch(context.Background(), Table{}, nil)
	require.False(t, resp.OK)
	assert.Equal(t, ErrCodeEmptyRequest, resp.Error.Code)
}

func TestDispatch_InvalidJSON(t *testing.T) {
	resp := Dispatch(context.Background(), Table{}, []byte("{not json"))
	require.False(t, resp.OK)
	assert.Equal(t, ErrCodeInvalidJSON, resp.Error.Code)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	req, _ := json.Marshal(Request{ID: "1", Method: "bogus"})
	resp := Dispatch(context.Background(), Table{}, req)
	require.False(t, resp.OK)
	assert.Equal(t, ErrCodeUnknownMethod, resp.Error.Code)
	assert.Equal(t, "1", resp.ID)
}

func TestDispatch_HandlerSuccess(t *testing.T) {
	table := Table{
		MethodStatus: func(ctx context.Context, params json.RawMessage) (any, error) {
			return StatusResult{PID: 42, Servers: []string{"a"}}, nil
		},
	}
	req, _ := json.Marshal(Request{ID: "2", Method: MethodStatus})
	resp := Dispatch(context.Background(), table, req)
	require.True(t, resp.OK)

	var result StatusResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, 42, result.PID)
}

func TestDispatch_HandlerRuntimeError(t *testing.T) {
	table := Table{
		MethodCallTool: func(ctx context.Context, params json.RawMessage) (any, error) {
			return nil, errors.New("boom")
		},
	}
	req, _ := json.Marshal(Request{ID: "3", Method: MethodCallTool})
	resp := Dispatch(context.Background(), table, req)
	require.False(t, resp.OK)
	assert.Equal(t, ErrCodeRuntimeError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "boom")
}

func TestDispatch_HandlerCodedError(t *testing.T) {
	table := Table{
		MethodCallTool: func(ctx context.Context, params json.RawMessage) (any, error) {
			return nil, &CodedError{Code: "not_managed_by_daemon", Message: "not managed"}
		},
	}
	req, _ := json.Marshal(Request{ID: "4", Method: MethodCallTool})
	resp := Dispatch(context.Background(), table, req)
	require.False(t, resp.OK)
	assert.Equal(t, "not_managed_by_daemon", resp.Error.Code)
}

func TestReadFramedRequest_ParsesAsSoonAsComplete(t *testing.T) {
	payload := `{"id":"1","method":"status"}`
	r := strings.NewReader(payload)
	buf, err := ReadFramedRequest(r)
	require.NoError(t, err)
	assert.True(t, json.Valid(buf))
}

func TestReadFramedRequest_FallsBackToEOF(t *testing.T) {
	// No valid JSON ever produced; EOF returns what was accumulated.
	r := strings.NewReader(`not json at all`)
	buf, err := ReadFramedRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "not json at all", string(buf))
}

func TestWriteFramedResponse(t *testing.T) {
	var out bytes.Buffer
	resp := ErrResponse("1", ErrCodeRuntimeError, "oops")
	require.NoError(t, WriteFramedResponse(&out, resp))

	var decoded Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "oops", decoded.Error.Message)
}
