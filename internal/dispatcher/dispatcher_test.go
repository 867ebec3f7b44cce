// Copyright 2024 Upbound Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatcher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/pleme-io/typemill-sub012/internal/errs"
)

func TestDispatchUnknownMethod(t *testing.T) {
	d := New(nil, RateLimit{})
	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "tools/list"}, ToolHandlerContext{})
	if resp.Error == nil || resp.Error.Code != errs.CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := New(nil, RateLimit{})
	params, _ := json.Marshal(ToolCallParams{Name: "doesNotExist"})
	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "tools/call", Params: params}, ToolHandlerContext{})
	if resp.Error == nil || resp.Error.Code != errs.CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound for an unregistered tool, got %+v", resp.Error)
	}
}

func TestDispatchMalformedParams(t *testing.T) {
	d := New(nil, RateLimit{})
	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "tools/call", Params: json.RawMessage("{not json")}, ToolHandlerContext{})
	if resp.Error == nil || resp.Error.Code != errs.CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams for malformed params, got %+v", resp.Error)
	}
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := New(nil, RateLimit{})
	d.Register("echo", false, func(ctx context.Context, hc ToolHandlerContext, raw json.RawMessage) (any, error) {
		var args struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		return map[string]string{"echoed": args.Message}, nil
	})

	params, _ := json.Marshal(ToolCallParams{Name: "echo", Arguments: json.RawMessage(`{"message":"hi"}`)})
	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "tools/call", Params: params}, ToolHandlerContext{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	m, ok := resp.Result.(map[string]string)
	if !ok || m["echoed"] != "hi" {
		t.Fatalf("expected echoed result, got %+v", resp.Result)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	d := New(nil, RateLimit{})
	d.Register("fails", false, func(ctx context.Context, hc ToolHandlerContext, raw json.RawMessage) (any, error) {
		return nil, errs.New(errs.KindConflict, "stale plan")
	})

	params, _ := json.Marshal(ToolCallParams{Name: "fails"})
	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "tools/call", Params: params}, ToolHandlerContext{})
	if resp.Error == nil || resp.Error.Code != errs.JSONRPCCode(errs.KindConflict) {
		t.Fatalf("expected a Conflict JSON-RPC code, got %+v", resp.Error)
	}
}

func TestDispatchRateLimitsPerSession(t *testing.T) {
	d := New(nil, RateLimit{RequestsPerSecond: 1, Burst: 1})
	d.Register("noop", false, func(ctx context.Context, hc ToolHandlerContext, raw json.RawMessage) (any, error) {
		return "ok", nil
	})
	session := &Session{ID: uuid.New()}
	params, _ := json.Marshal(ToolCallParams{Name: "noop"})
	req := Request{JSONRPC: "2.0", Method: "tools/call", Params: params}

	first := d.Dispatch(context.Background(), req, ToolHandlerContext{Session: session})
	if first.Error != nil {
		t.Fatalf("expected the first request within burst to succeed, got %+v", first.Error)
	}
	second := d.Dispatch(context.Background(), req, ToolHandlerContext{Session: session})
	if second.Error == nil {
		t.Fatalf("expected the second immediate request to be rate limited")
	}
}
