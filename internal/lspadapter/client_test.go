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

package lspadapter

import (
	"context"
	"net"
	"testing"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/pleme-io/typemill-sub012/internal/errs"
)

// fakeServerHandler answers a fixed set of LSP methods over an in-memory
// jsonrpc2 connection, standing in for an external language server.
type fakeServerHandler struct {
	references []lsp.Location
}

func (h *fakeServerHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "textDocument/references":
		_ = conn.Reply(ctx, req.ID, h.references)
	case "textDocument/documentSymbol":
		_ = conn.Reply(ctx, req.ID, []lsp.SymbolInformation{{Name: "widget"}})
	case "shutdown":
		_ = conn.Reply(ctx, req.ID, nil)
	case "textDocument/didOpen":
		// notification, no reply expected
	default:
		_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + req.Method})
	}
}

// newTestClient wires a Client to an in-memory fakeServerHandler over a
// net.Pipe, the same VSCodeObjectCodec-framed stream shape
// cmd/up/xpls/serve.go establishes against a real language server.
func newTestClient(t *testing.T, h *fakeServerHandler) (*Client, func()) {
	t.Helper()
	clientSide, serverSide := net.Pipe()

	ctx := context.Background()
	serverConn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{}), h)
	clientConn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}), jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		return nil, nil
	}))

	client := NewClient(clientConn, WithTimeout(2*time.Second))
	cleanup := func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	}
	return client, cleanup
}

func TestClientFindReferencesReturnsServerResult(t *testing.T) {
	want := []lsp.Location{{URI: "file:///widget.ts"}}
	client, cleanup := newTestClient(t, &fakeServerHandler{references: want})
	defer cleanup()

	got, err := client.FindReferences(context.Background(), "file:///widget.ts", 0, 0)
	if err != nil {
		t.Fatalf("FindReferences: %v", err)
	}
	if len(got) != 1 || got[0].URI != want[0].URI {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestClientDocumentSymbolReturnsServerResult(t *testing.T) {
	client, cleanup := newTestClient(t, &fakeServerHandler{})
	defer cleanup()

	got, err := client.DocumentSymbol(context.Background(), "file:///widget.ts")
	if err != nil {
		t.Fatalf("DocumentSymbol: %v", err)
	}
	if len(got) != 1 || got[0].Name != "widget" {
		t.Fatalf("got %+v", got)
	}
}

func TestClientShutdownSucceeds(t *testing.T) {
	client, cleanup := newTestClient(t, &fakeServerHandler{})
	defer cleanup()

	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestClientCallWrapsMethodNotFoundAsLspError(t *testing.T) {
	client, cleanup := newTestClient(t, &fakeServerHandler{})
	defer cleanup()

	_, err := client.FindDefinition(context.Background(), "file:///widget.ts", 0, 0)
	if err == nil {
		t.Fatalf("expected an error for an unhandled method")
	}
	if !errs.Is(err, errs.KindLsp) {
		t.Fatalf("expected an Lsp-kind error, got %v", err)
	}
}

func TestClientOpenDocumentSendsDidOpenNotification(t *testing.T) {
	client, cleanup := newTestClient(t, &fakeServerHandler{})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.OpenDocument(ctx, "file:///widget.ts", "export const x = 1;\n"); err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
}

func TestClientMailboxForReturnsSameInstanceForSameURI(t *testing.T) {
	client, cleanup := newTestClient(t, &fakeServerHandler{})
	defer cleanup()

	a := client.mailboxFor("file:///widget.ts")
	b := client.mailboxFor("file:///widget.ts")
	if a != b {
		t.Fatalf("expected the same mailbox instance for the same URI")
	}
	c := client.mailboxFor("file:///other.ts")
	if a == c {
		t.Fatalf("expected a distinct mailbox instance for a different URI")
	}
}
