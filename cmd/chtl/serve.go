// Copyright 2024 The CHTL Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/chtl-lang/chtl/chtl/config"
)

// liveReloadScript is injected into every served HTML page; it opens a
// websocket back to the dev server and reloads the page on a "reload"
// message, the same pattern Hugo's --liveReload middleware injects.
const liveReloadScript = `<script>
(function(){
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/__chtl_livereload");
  ws.onmessage = function(ev) { if (ev.data === "reload") location.reload(); };
})();
</script>`

type serveFlags struct {
	port        int
	noReload    bool
	noOpen      bool
	moduleDir   string
	officialDir string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Build and serve .chtl output, rebuilding on change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "."
			if len(args) == 1 {
				src = args[0]
			}
			return runServe(cmd, src, f)
		},
	}
	cmd.Flags().IntVar(&f.port, "port", 0, "port to serve on (overrides chtl.toml dev.port)")
	cmd.Flags().BoolVar(&f.noReload, "no-reload", false, "disable live reload on file change")
	cmd.Flags().BoolVar(&f.noOpen, "no-open", false, "do not open a browser automatically")
	cmd.Flags().StringVar(&f.moduleDir, "module-dir", "", "project module search directory")
	cmd.Flags().StringVar(&f.officialDir, "official-dir", "", "official (shared) module directory")
	return cmd
}

func runServe(cmd *cobra.Command, src string, f *serveFlags) error {
	proj, err := config.Load(src)
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	if f.port != 0 {
		proj.Dev.Port = f.port
	}
	if f.noReload {
		proj.Dev.LiveReload = false
	}

	buildOnce := func() {
		bf := &buildFlags{
			source:      src,
			outDir:      proj.Output.Dir,
			minify:      proj.Output.Minify,
			pretty:      proj.Output.Pretty,
			strict:      proj.Compile.StrictConstraints,
			moduleDir:   f.moduleDir,
			officialDir: f.officialDir,
		}
		if err := runBuild(cmd, bf); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "rebuild failed: %v\n", err)
		}
	}
	buildOnce()

	hub := newReloadHub()
	mux := http.NewServeMux()
	mux.Handle("/", liveReloadMiddleware(http.FileServer(http.Dir(proj.Output.Dir)), proj.Dev.LiveReload))
	if proj.Dev.LiveReload {
		mux.HandleFunc("/__chtl_livereload", hub.serveWS)
	}

	if proj.Dev.LiveReload {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("starting file watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(src); err != nil {
			return fmt.Errorf("watching %s: %w", src, err)
		}

		debounced := debounce.New(250 * time.Millisecond)
		go func() {
			for {
				select {
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					if strings.HasSuffix(ev.Name, ".chtl") {
						debounced(func() {
							buildOnce()
							hub.broadcast("reload")
						})
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
				}
			}
		}()
	}

	addr := fmt.Sprintf(":%d", proj.Dev.Port)
	url := fmt.Sprintf("http://localhost:%d/", proj.Dev.Port)
	fmt.Fprintf(cmd.OutOrStdout(), "serving %s at %s\n", proj.Output.Dir, url)
	if !f.noOpen && proj.Dev.OpenBrowser {
		go func() {
			time.Sleep(300 * time.Millisecond)
			_ = browser.OpenURL(url)
		}()
	}
	return http.ListenAndServe(addr, mux)
}

// liveReloadMiddleware injects liveReloadScript, before the client sees
// it, into the response for "/" and for any path ending in ".html";
// other responses pass through unchanged, whatever their content type.
func liveReloadMiddleware(next http.Handler, enabled bool) http.Handler {
	if !enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".html") && r.URL.Path != "/" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &injectingWriter{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		rec.flush()
	})
}

// injectingWriter buffers a response and appends liveReloadScript
// before the closing </body> tag, or at the end if none is found.
type injectingWriter struct {
	http.ResponseWriter
	buf  []byte
	code int
}

func (w *injectingWriter) WriteHeader(code int) { w.code = code }
func (w *injectingWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *injectingWriter) flush() {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	body := string(w.buf)
	if idx := strings.LastIndex(body, "</body>"); idx >= 0 {
		body = body[:idx] + liveReloadScript + body[idx:]
	} else {
		body += liveReloadScript
	}
	w.ResponseWriter.WriteHeader(w.code)
	_, _ = w.ResponseWriter.Write([]byte(body))
}

// reloadHub fans a "reload" notification out to every connected
// browser tab's websocket, the minimal shape of Hugo's own livereload
// broadcast hub.
type reloadHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	upgrade websocket.Upgrader
}

func newReloadHub() *reloadHub {
	return &reloadHub{
		clients: make(map[*websocket.Conn]bool),
		upgrade: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *reloadHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *reloadHub) broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}
}
