package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"treno/internal/web"

	"github.com/spf13/cobra"
)

const webShutdownTimeout = 5 * time.Second

func newWebCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the web UI",
		Long: strings.TrimSpace(`
Serve the journal as a server-rendered HTML UI.

The page stays live over a Datastar event stream, and card swipes travel over a
websocket. Stop the server with Ctrl+C.
`),
		Example: strings.TrimSpace(`
# Serve on the configured address (default 127.0.0.1:8787)
treno web

# Serve a specific data dir on another port
treno --dir ./gym web --addr :3335
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = env.cfg.WebAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess := env.session(ctx, app)
			srv, err := web.NewServer(web.ServerConfig{
				Addr:    listenAddr,
				Session: sess,
				Logger:  env.log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}

			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"
			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"dataDir":   env.cfg.DataDir,
					"backend":   env.cfg.Backend,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"open " + url},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Treno web running at %s\n", url)

			hs := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				// Streams end with the server context.
				BaseContext: func(net.Listener) context.Context { return ctx },
			}
			errCh := make(chan error, 1)
			go func() { errCh <- hs.Serve(ln) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return writeErr(cmd, err)
			case <-ctx.Done():
			}

			env.log.Info("web server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), webShutdownTimeout)
			defer cancel()
			if err := hs.Shutdown(shutdownCtx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default from config)")
	return cmd
}
