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

// Package lspadapter is the narrow facade over an external Language Server
// Protocol client described in §4.C. It is the only component allowed to
// speak to an external LSP process; everything else sees the Adapter
// interface. Grounded on upbound-up/internal/xpls/server/server.go's use
// of a *jsonrpc2.Conn and sourcegraph/go-lsp types, generalized from a
// push-only diagnostics publisher into a request/response facade, with a
// sony/gobreaker circuit breaker wrapping every outbound call (carried
// from nmxmxh-inos_v1's dependency on that library).
package lspadapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/sony/gobreaker"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/pleme-io/typemill-sub012/internal/errs"
)

// DefaultTimeout is the per-request timeout from §4.C/§5.
const DefaultTimeout = 5 * time.Second

// openAckFallback is the best-effort acknowledgement wait used when the
// server has no explicit open-doc ack semantics (§4.C).
const openAckFallback = 500 * time.Millisecond

// Adapter is the facade every other component depends on; lspadapter.Client
// is the only concrete implementation, but tests substitute an in-memory
// fake satisfying this interface.
type Adapter interface {
	OpenDocument(ctx context.Context, uri string, content string) error
	FindReferences(ctx context.Context, uri string, line, col int) ([]lsp.Location, error)
	FindDefinition(ctx context.Context, uri string, line, col int) ([]lsp.Location, error)
	DocumentSymbol(ctx context.Context, uri string) ([]lsp.SymbolInformation, error)
	WorkspaceSymbol(ctx context.Context, query string) ([]lsp.SymbolInformation, error)
	CodeAction(ctx context.Context, uri string, rng lsp.Range) ([]lsp.Command, error)
	Shutdown(ctx context.Context) error
	// BreakerState reports the circuit breaker's current state as one of
	// "closed", "open" or "half-open", surfaced by health_check (§6 added).
	BreakerState() string
}

// mailbox serializes requests against one URI; cross-URI requests run
// concurrently, per §4.C's ordering rule.
type mailbox struct {
	ch chan struct{}
}

func newMailbox() *mailbox {
	m := &mailbox{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

func (m *mailbox) withLock(ctx context.Context, fn func() error) error {
	select {
	case <-m.ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { m.ch <- struct{}{} }()
	return fn()
}

// Client is the concrete Adapter backed by a live jsonrpc2.Conn to an
// external language server.
type Client struct {
	conn    *jsonrpc2.Conn
	log     logging.Logger
	timeout time.Duration

	mu       sync.Mutex
	mailboxes map[string]*mailbox

	breaker *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the client's logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout overrides the per-request timeout (default DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient wraps conn, an already-established connection to an external
// language server, as an Adapter.
func NewClient(conn *jsonrpc2.Conn, opts ...Option) *Client {
	c := &Client{
		conn:      conn,
		log:       logging.NewNopLogger(),
		timeout:   DefaultTimeout,
		mailboxes: make(map[string]*mailbox),
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lsp-adapter",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

var _ Adapter = (*Client)(nil)

func (c *Client) mailboxFor(uri string) *mailbox {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.mailboxes[uri]
	if !ok {
		m = newMailbox()
		c.mailboxes[uri] = m
	}
	return m
}

// call performs a single LSP request through the circuit breaker with the
// client's configured timeout, translating any failure into errs.KindLsp.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.conn.Call(ctx, method, params, result)
	})
	if err != nil {
		return errs.Wrap(err, errs.KindLsp, fmt.Sprintf("lsp call %s", method))
	}
	return nil
}

// OpenDocument implements Adapter. It returns only after the server
// acknowledges, or after openAckFallback elapses if the server gives no
// explicit ack (some language servers treat didOpen as a notification with
// no reply).
func (c *Client) OpenDocument(ctx context.Context, uri string, content string) error {
	mb := c.mailboxFor(uri)
	return mb.withLock(ctx, func() error {
		params := lsp.DidOpenTextDocumentParams{
			TextDocument: lsp.TextDocumentItem{
				URI:  lsp.DocumentURI(uri),
				Text: content,
			},
		}

		done := make(chan error, 1)
		go func() {
			_, err := c.breaker.Execute(func() (any, error) {
				return nil, c.conn.Notify(ctx, "textDocument/didOpen", params)
			})
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				return errs.Wrap(err, errs.KindLsp, "open document")
			}
			return nil
		case <-time.After(openAckFallback):
			return nil
		case <-ctx.Done():
			return errs.Wrap(ctx.Err(), errs.KindLsp, "open document")
		}
	})
}

// FindReferences implements Adapter.
func (c *Client) FindReferences(ctx context.Context, uri string, line, col int) ([]lsp.Location, error) {
	var result []lsp.Location
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
			Position:     lsp.Position{Line: line, Character: col},
		},
		Context: lsp.ReferenceContext{IncludeDeclaration: false},
	}
	mb := c.mailboxFor(uri)
	err := mb.withLock(ctx, func() error {
		return c.call(ctx, "textDocument/references", params, &result)
	})
	return result, err
}

// FindDefinition implements Adapter.
func (c *Client) FindDefinition(ctx context.Context, uri string, line, col int) ([]lsp.Location, error) {
	var result []lsp.Location
	params := lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
		Position:     lsp.Position{Line: line, Character: col},
	}
	mb := c.mailboxFor(uri)
	err := mb.withLock(ctx, func() error {
		return c.call(ctx, "textDocument/definition", params, &result)
	})
	return result, err
}

// DocumentSymbol implements Adapter.
func (c *Client) DocumentSymbol(ctx context.Context, uri string) ([]lsp.SymbolInformation, error) {
	var result []lsp.SymbolInformation
	params := lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
	}
	mb := c.mailboxFor(uri)
	err := mb.withLock(ctx, func() error {
		return c.call(ctx, "textDocument/documentSymbol", params, &result)
	})
	return result, err
}

// WorkspaceSymbol implements Adapter; workspace-scoped requests aren't
// keyed to a single URI so they run on their own mailbox.
func (c *Client) WorkspaceSymbol(ctx context.Context, query string) ([]lsp.SymbolInformation, error) {
	var result []lsp.SymbolInformation
	params := lsp.WorkspaceSymbolParams{Query: query}
	mb := c.mailboxFor("__workspace__")
	err := mb.withLock(ctx, func() error {
		return c.call(ctx, "workspace/symbol", params, &result)
	})
	return result, err
}

// CodeAction implements Adapter.
func (c *Client) CodeAction(ctx context.Context, uri string, rng lsp.Range) ([]lsp.Command, error) {
	var result []lsp.Command
	params := lsp.CodeActionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
		Range:        rng,
	}
	mb := c.mailboxFor(uri)
	err := mb.withLock(ctx, func() error {
		return c.call(ctx, "textDocument/codeAction", params, &result)
	})
	return result, err
}

// Shutdown implements Adapter.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, "shutdown", nil, nil)
}

// BreakerState implements Adapter, translating gobreaker's State into the
// three-value vocabulary health_check reports (§6 added).
func (c *Client) BreakerState() string {
	switch c.breaker.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Cancel sends the LSP $/cancelRequest notification for id. The adapter
// does not guarantee the server honors it (§4.C).
func (c *Client) Cancel(ctx context.Context, id jsonrpc2.ID) error {
	return c.conn.Notify(ctx, "$/cancelRequest", map[string]any{"id": id})
}
