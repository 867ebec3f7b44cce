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

// Package transport implements the three interchangeable request/response
// loops of §4.J: stdio, WebSocket, and Unix socket. Every loop does the
// same three things per message — deserialize a Request, hand it to a
// dispatcher.Dispatcher, serialize the Response back — and shares that
// shape via the HandleLine helper; each loop only owns its own framing, per
// the comment on dispatcher.Request. The stdio loop is grounded directly
// on upbound-up/cmd/up/xpls/serve.go's bufio.Reader/Writer read-dispatch-
// write cycle, generalized from jsonrpc2.VSCodeObjectCodec's single fixed
// object codec to a line-delimited one, which the Unix-socket loop reuses;
// the WebSocket loop carries one message per text frame instead.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pleme-io/typemill-sub012/internal/dispatcher"
	"github.com/pleme-io/typemill-sub012/internal/errs"
)

// SessionFactory builds the per-connection handler context a transport
// needs to dispatch one session's requests: a fresh Session (for rate
// limiting / cancellation scoping) plus whatever LSP adapter and app state
// the caller wants visible to every handler in that session.
type SessionFactory func() dispatcher.ToolHandlerContext

// HandleLine deserializes one line of input, dispatches it, and returns
// the serialized response line (without trailing newline). A malformed
// line yields a §6 ParseError response per the transport contract ("parse
// errors produce a -32700 JSON-RPC error and the loop continues").
func HandleLine(ctx context.Context, d *dispatcher.Dispatcher, hc dispatcher.ToolHandlerContext, line []byte) []byte {
	var req dispatcher.Request
	if err := json.Unmarshal(line, &req); err != nil {
		resp := dispatcher.Response{
			JSONRPC: "2.0",
			Error:   &dispatcher.RPCError{Code: errs.CodeParseError, Message: "parse error: " + err.Error()},
		}
		out, _ := json.Marshal(resp)
		return out
	}
	resp := d.Dispatch(ctx, req, hc)
	out, err := json.Marshal(resp)
	if err != nil {
		fallback := dispatcher.Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &dispatcher.RPCError{Code: errs.CodeInternalError, Message: "failed to serialize response"},
		}
		out, _ = json.Marshal(fallback)
	}
	return out
}

// Stdio runs the line-delimited JSON loop over in/out, per §4.J. It
// returns when in reaches EOF (the client disconnected), ending the
// session cleanly per §4.J's "disconnect ends the session cleanly" rule.
func Stdio(ctx context.Context, d *dispatcher.Dispatcher, sessions SessionFactory, in io.Reader, out io.Writer) error {
	reader := bufio.NewReaderSize(in, 1<<20)
	writer := bufio.NewWriter(out)
	hc := sessions()
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			respLine := HandleLine(ctx, d, hc, trimNewline(line))
			if _, werr := writer.Write(respLine); werr != nil {
				return werr
			}
			if _, werr := writer.Write([]byte("\n")); werr != nil {
				return werr
			}
			if werr := writer.Flush(); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func trimNewline(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// WebSocket is an http.Handler upgrading each connection to a WebSocket
// and running the same dispatch loop, one text frame per message, per
// §4.J. Each accepted connection is its own session.
type WebSocket struct {
	Dispatcher *dispatcher.Dispatcher
	Sessions   SessionFactory
	Log        logging.Logger

	upgrader websocket.Upgrader
	once     sync.Once
}

func (w *WebSocket) init() {
	w.once.Do(func() {
		w.upgrader = websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(r *http.Request) bool { return true },
		}
		if w.Log == nil {
			w.Log = logging.NewNopLogger()
		}
	})
}

// ServeHTTP implements http.Handler.
func (w *WebSocket) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.init()
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.Log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close() // nolint:errcheck

	ctx := r.Context()
	hc := w.Sessions()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return // disconnect ends the session cleanly
		}
		if msgType != websocket.TextMessage {
			continue
		}
		respLine := HandleLine(ctx, w.Dispatcher, hc, data)
		if err := conn.WriteMessage(websocket.TextMessage, respLine); err != nil {
			return
		}
	}
}

// UnixSocketConfig configures the Unix-domain-socket transport (§4.J, §6).
type UnixSocketConfig struct {
	// Path defaults to $HOME/.typemill/daemon.sock.
	Path string
}

// DefaultSocketPath returns $HOME/.typemill/daemon.sock.
func DefaultSocketPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".typemill", "daemon.sock"), nil
}

// ListenUnix binds cfg.Path with 0600 permissions, removing a stale socket
// left by a daemon that is no longer listening, and refusing to start if
// another daemon answers, per §4.J and §6's "Unix-socket layout" rule.
func ListenUnix(cfg UnixSocketConfig) (net.Listener, error) {
	path := cfg.Path
	if path == "" {
		var err error
		path, err = DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		if dialErr := probeStaleSocket(path); dialErr == nil {
			return nil, errs.New(errs.KindAlreadyExists, "another daemon is already listening on "+path)
		}
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0600); err != nil {
		ln.Close() // nolint:errcheck
		return nil, err
	}
	return ln, nil
}

// probeStaleSocket reports nil if a listener answers at path (meaning the
// socket is live, not stale).
func probeStaleSocket(path string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	return conn.Close()
}

// UnixSocket accepts connections on ln and runs the line-delimited loop
// over each, same semantics as Stdio, one goroutine per connection.
func UnixSocket(ctx context.Context, ln net.Listener, d *dispatcher.Dispatcher, sessions SessionFactory, log logging.Logger) error {
	if log == nil {
		log = logging.NewNopLogger()
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go func(c net.Conn) {
			defer c.Close() // nolint:errcheck
			if err := Stdio(ctx, d, sessions, c, c); err != nil {
				log.Debug("unix socket session ended", "error", err)
			}
		}(conn)
	}
}

// NewSession returns a SessionFactory that builds a fresh Session ID per
// connection, sharing the rest of hc across calls (App/LSP are process-
// wide per §5's "plugin registry is read-mostly and initialized once").
func NewSession(base dispatcher.ToolHandlerContext) SessionFactory {
	return func() dispatcher.ToolHandlerContext {
		hc := base
		hc.Session = &dispatcher.Session{ID: uuid.New()}
		return hc
	}
}
