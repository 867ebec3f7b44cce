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

// Package dispatcher holds the toolName -> handler registry and routes
// deserialized JSON-RPC requests to it (§4.I), generalized from
// upbound-up/internal/xpls/dispatcher's fixed `switch r.Method` over a
// handful of LSP notifications into an open, registered handler map keyed
// by tool name.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/google/uuid"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/executor"
	"github.com/pleme-io/typemill-sub012/internal/fileservice"
	"github.com/pleme-io/typemill-sub012/internal/lspadapter"
	"github.com/pleme-io/typemill-sub012/internal/planner"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// AppState is the process-wide state every handler is given access to
// through ToolHandlerContext — the registry, file service, executor and
// workspace view, all initialized once at startup (§5's "read-mostly,
// initialized once" rule for the plugin registry applies to the rest of
// this bundle too).
type AppState struct {
	Workspace *planner.Workspace
	Registry  *plugin.Registry
	Files     *fileservice.FileService
	Exec      *executor.Executor
}

// Session identifies one connected client for rate limiting and
// cancellation purposes (§5's "per-session" cancellation/throttling
// rules).
type Session struct {
	ID uuid.UUID
}

// ToolHandlerContext is passed to every Handler, mirroring
// upbound-up/internal/xpls/handler's bundling of server state + the
// inbound session + the LSP facade into one parameter rather than a long
// argument list.
type ToolHandlerContext struct {
	App        *AppState
	Session    *Session
	LSP        lspadapter.Adapter
	Dispatcher *Dispatcher
}

// Handler is one registered tool implementation. raw is the `arguments`
// field of the tools/call params, left as json.RawMessage so each handler
// unmarshals into its own typed argument struct (§4.I step 2).
type Handler func(ctx context.Context, hc ToolHandlerContext, raw json.RawMessage) (any, error)

type registration struct {
	handler  Handler
	internal bool
}

// Dispatcher owns the toolName -> handler map plus the per-session
// rate limiter.
type Dispatcher struct {
	handlers map[string]registration
	log      logging.Logger

	limiter *limiter.TokenBucket
	rate    RateLimit

	// budgetsMu guards budgets, a shadow accounting of remaining tokens
	// per session. The rate-limiter library's TokenBucket answers only
	// Allow(key); it exposes no introspection of a key's remaining
	// balance, so the dispatcher replays the same refill math itself
	// purely so getQueueStats (§6 added) has something to report.
	budgetsMu sync.Mutex
	budgets   map[string]*sessionBudget
}

// sessionBudget mirrors the token-bucket math RateLimit describes for one
// session, kept in lockstep with checkRateLimit's calls into d.limiter.
type sessionBudget struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimit configures the token-bucket throttle applied per session
// (§4.I.1). A zero value disables rate limiting.
type RateLimit struct {
	RequestsPerSecond int
	Burst             int
}

// New returns an empty Dispatcher. Register handlers with Register before
// calling Dispatch.
func New(log logging.Logger, rate RateLimit) *Dispatcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	d := &Dispatcher{
		handlers: make(map[string]registration),
		log:      log,
		rate:     rate,
		budgets:  make(map[string]*sessionBudget),
	}
	if rate.RequestsPerSecond > 0 {
		tb, err := limiter.NewTokenBucket(limiter.Config{
			Rate:     int64(rate.RequestsPerSecond),
			Duration: time.Second,
			Burst:    int64(rate.Burst),
		}, store.NewMemoryStore(time.Minute))
		if err == nil {
			d.limiter = tb
		} else {
			log.Debug("rate limiter disabled: construction failed", "error", err)
		}
	}
	return d
}

// Register adds a handler for toolName. internal marks a tool that isn't
// part of the public surface (e.g. a debug-only introspection call) —
// transports may choose to hide these from any tool-listing response.
func (d *Dispatcher) Register(toolName string, internal bool, h Handler) {
	d.handlers[toolName] = registration{handler: h, internal: internal}
}

// Dispatch routes req to its registered handler per §4.I's four steps,
// returning a Response envelope ready to serialize back to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, hc ToolHandlerContext) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	if req.Method != "tools/call" {
		resp.Error = &RPCError{Code: errs.CodeMethodNotFound, Message: "unknown method: " + req.Method}
		return resp
	}

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp.Error = &RPCError{Code: errs.CodeInvalidParams, Message: "malformed tools/call params: " + err.Error()}
		return resp
	}

	reg, ok := d.handlers[params.Name]
	if !ok {
		resp.Error = &RPCError{Code: errs.CodeMethodNotFound, Message: "unknown tool: " + params.Name}
		return resp
	}

	hc.Dispatcher = d

	if retryAfter, limited := d.checkRateLimit(hc.Session); limited {
		resp.Error = &RPCError{
			Code:    errs.CodeInvalidRequest,
			Message: "rate limit exceeded",
			Data:    map[string]any{"retryAfter": retryAfter.String()},
		}
		return resp
	}

	result, err := reg.handler(ctx, hc, params.Arguments)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// checkRateLimit reports whether session has exceeded its token budget.
// A nil session or a Dispatcher with rate limiting disabled never limits.
func (d *Dispatcher) checkRateLimit(session *Session) (retryAfter time.Duration, limited bool) {
	if d.limiter == nil || session == nil {
		return 0, false
	}
	allowed := d.limiter.Allow(session.ID.String())
	d.recordBudget(session.ID.String(), allowed)
	if allowed {
		return 0, false
	}
	return time.Second, true
}

// recordBudget replays the token-bucket refill for key so RateLimiterStatus
// can report an approximate remaining balance without the underlying
// library's own internal state.
func (d *Dispatcher) recordBudget(key string, allowed bool) {
	d.budgetsMu.Lock()
	defer d.budgetsMu.Unlock()

	b, ok := d.budgets[key]
	now := time.Now()
	if !ok {
		b = &sessionBudget{tokens: float64(d.rate.Burst), lastRefill: now}
		d.budgets[key] = b
	} else {
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens += elapsed * float64(d.rate.RequestsPerSecond)
		if b.tokens > float64(d.rate.Burst) {
			b.tokens = float64(d.rate.Burst)
		}
		b.lastRefill = now
	}
	if allowed && b.tokens > 0 {
		b.tokens--
	}
}

// RateLimiterStatus reports sessionID's approximate remaining token
// balance and the configured burst ceiling, for getQueueStats (§6 added).
// enabled is false only when rate limiting is off; a session that has
// never been seen reports a full burst.
func (d *Dispatcher) RateLimiterStatus(sessionID string) (remaining, limit int, enabled bool) {
	if d.limiter == nil {
		return 0, 0, false
	}
	d.budgetsMu.Lock()
	defer d.budgetsMu.Unlock()
	b, ok := d.budgets[sessionID]
	if !ok {
		return d.rate.Burst, d.rate.Burst, true
	}
	return int(b.tokens), d.rate.Burst, true
}

func toRPCError(err error) *RPCError {
	kind := errs.KindOf(err)
	var data any
	var e *errs.Error
	if errors.As(err, &e) {
		data = e.Data
	}
	return &RPCError{
		Code:    errs.JSONRPCCode(kind),
		Message: fmt.Sprintf("%s: %v", kind, err),
		Data:    data,
	}
}
