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

// Command typemill-core is the thin transport-selection entrypoint around
// the engine specified in this module: everything past flag parsing
// (config/PID-file/daemon supervision, tracing setup) is out of scope per
// §1 and left to an outer wrapper. This main only wires the plugin
// registry, file service, and dispatcher together and starts whichever
// loop from internal/transport the caller asked for, grounded on
// upbound-up/cmd/up/main.go's kong-parse-then-dispatch shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/pterm/pterm"
	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/dispatcher"
	"github.com/pleme-io/typemill-sub012/internal/executor"
	"github.com/pleme-io/typemill-sub012/internal/fileservice"
	"github.com/pleme-io/typemill-sub012/internal/handlers"
	"github.com/pleme-io/typemill-sub012/internal/lang/csharp"
	"github.com/pleme-io/typemill-sub012/internal/lang/gitignore"
	"github.com/pleme-io/typemill-sub012/internal/lang/golang"
	"github.com/pleme-io/typemill-sub012/internal/lang/java"
	"github.com/pleme-io/typemill-sub012/internal/lang/markdown"
	"github.com/pleme-io/typemill-sub012/internal/lang/python"
	"github.com/pleme-io/typemill-sub012/internal/lang/rust"
	"github.com/pleme-io/typemill-sub012/internal/lang/swift"
	"github.com/pleme-io/typemill-sub012/internal/lang/typescript"
	"github.com/pleme-io/typemill-sub012/internal/planner"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
	"github.com/pleme-io/typemill-sub012/internal/transport"
	"github.com/pleme-io/typemill-sub012/internal/watch"
)

// cli is the full flag surface this entrypoint accepts. Config-file
// loading (.codebuddy/config.json, refactor.toml presets) is an external
// collaborator per §1 — these flags are the minimal override set needed
// to start a transport loop against a workspace.
type cli struct {
	Workspace string `help:"Workspace root directory." default:"."`
	Transport string `help:"Transport to serve: stdio, websocket, or unix." enum:"stdio,websocket,unix" default:"stdio"`
	Addr      string `help:"Listen address for the websocket transport." default:"127.0.0.1:7417"`
	SocketPath string `help:"Unix socket path (defaults to $HOME/.typemill/daemon.sock)." name:"socket-path"`
	Git       bool   `help:"Enable git-aware move/delete (git mv / git rm)." default:"true" negatable:""`
	RatePerSec int   `help:"Per-session rate limit in requests/second (0 disables)." name:"rate" default:"0"`
	RateBurst int    `help:"Token bucket burst size for the rate limiter." default:"10"`
	Watch     bool   `help:"Watch the workspace for external changes and fail fast on a stale apply." default:"true" negatable:""`

	Version kong.VersionFlag `help:"Print version and exit."`
}

const version = "0.1.0"

func main() {
	var c cli
	parser := kong.Must(&c,
		kong.Name("typemill-core"),
		kong.Description("Multi-language code-intelligence and refactoring engine."),
		kong.Vars{"version": version},
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	_, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		defer cancel()
		<-sigCh
	}()

	if err := run(ctx, c); err != nil {
		pterm.Error.Println(err)
		os.Exit(11) // Internal, per §6's process exit code table
	}
}

func run(ctx context.Context, c cli) error {
	spinner, _ := pterm.DefaultSpinner.Start("initializing plugin registry")

	root, err := absWorkspace(c.Workspace)
	if err != nil {
		spinner.Fail(err)
		return err
	}

	registry := plugin.NewRegistry()
	registry.Register(rust.New())
	registry.Register(typescript.New())
	registry.Register(python.New())
	registry.Register(golang.New())
	registry.Register(java.New())
	registry.Register(csharp.New())
	registry.Register(swift.New())
	registry.Register(markdown.New())
	registry.Register(gitignore.New())

	log := logging.NewNopLogger()
	fs := afero.NewOsFs()

	svc := fileservice.New(fs, fileservice.Config{GitIntegration: c.Git, WorkspaceRoot: root}, log)
	if c.Watch {
		if w, err := watch.New(root, log); err != nil {
			log.Debug("workspace watcher disabled: construction failed", "error", err)
		} else {
			svc.AttachWatcher(w)
			go func() {
				<-ctx.Done()
				_ = w.Close()
			}()
		}
	}
	exec := executor.New(fs, svc, log)

	ws := &planner.Workspace{Fs: fs, Root: root, Registry: registry}
	appState := &dispatcher.AppState{Workspace: ws, Registry: registry, Files: svc, Exec: exec}

	spinner.UpdateText("registering tool handlers")
	d := dispatcher.New(log, dispatcher.RateLimit{RequestsPerSecond: c.RatePerSec, Burst: c.RateBurst})
	handlers.RegisterAll(d)

	baseHC := dispatcher.ToolHandlerContext{App: appState, LSP: nil}
	sessions := transport.NewSession(baseHC)

	spinner.Success(fmt.Sprintf("serving %s over %s", root, c.Transport))

	switch c.Transport {
	case "stdio":
		return transport.Stdio(ctx, d, sessions, os.Stdin, os.Stdout)
	case "websocket":
		wsHandler := &transport.WebSocket{Dispatcher: d, Sessions: sessions, Log: log}
		server := &http.Server{Addr: c.Addr, Handler: wsHandler}
		go func() {
			<-ctx.Done()
			_ = server.Close()
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case "unix":
		ln, err := transport.ListenUnix(transport.UnixSocketConfig{Path: c.SocketPath})
		if err != nil {
			return err
		}
		defer ln.Close() // nolint:errcheck
		go func() {
			<-ctx.Done()
			_ = ln.Close()
		}()
		return transport.UnixSocket(ctx, ln, d, sessions, log)
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
}

func absWorkspace(path string) (string, error) {
	if path == "" {
		path = "."
	}
	return filepath.Abs(path)
}
