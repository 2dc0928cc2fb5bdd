// Command surfd runs a standalone WebSocket echo server with optional
// metrics and profiling endpoints on a side listener.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/felixge/fgprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/surfws/surf"
)

var (
	addr         string
	debugAddr    string
	pollInterval time.Duration
	readBufSize  int
	logLevel     string
)

type echo struct{ surf.NopHandler }

func (echo) OnOpen(c *surf.Conn) {
	slog.Info("open", "remote", c.RemoteAddr())
}

func (echo) OnMessage(c *surf.Conn, msg string) {
	c.SendText(msg)
}

func (echo) OnPing(c *surf.Conn) {
	c.SendPong()
}

func (echo) OnClose(c *surf.Conn) {
	slog.Info("close", "remote", c.RemoteAddr())
}

var rootCmd = &cobra.Command{
	Use:           "surfd",
	Short:         "WebSocket echo server driven by a single event loop",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		opts := []surf.Option{
			surf.WithLogger(logger),
			surf.WithPollInterval(pollInterval),
			surf.WithReadBufferSize(readBufSize),
		}

		if debugAddr != "" {
			reg := prometheus.NewRegistry()
			opts = append(opts, surf.WithMetrics(reg))

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			mux.Handle("/debug/fgprof", fgprof.Handler())
			go func() {
				logger.Info("debug listener", "addr", debugAddr)
				if err := http.ListenAndServe(debugAddr, mux); err != nil {
					logger.Error("debug listener", "err", err)
				}
			}()
		}

		srv, err := surf.New(addr, echo{}, opts...)
		if err != nil {
			return err
		}
		return srv.Run()
	},
}

func main() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "websocket listen address")
	rootCmd.Flags().StringVar(&debugAddr, "debug-addr", "", "metrics and profiling listen address (disabled when empty)")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", surf.DefaultPollInterval, "readiness wait bound")
	rootCmd.Flags().IntVar(&readBufSize, "read-buffer", surf.DefaultReadBufferSize, "per-read chunk size in bytes")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("surfd", "err", err)
		os.Exit(1)
	}
}
