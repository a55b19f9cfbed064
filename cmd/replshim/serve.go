package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caffeineduck/replshim/executor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one session over HTTP",
		Long: `Start an HTTP server in front of a single session.

Endpoints:
  POST   /run                       Execute code, streams NDJSON events
  DELETE /interpreters/{language}   Terminate a language's interpreter
  GET    /languages                 Registered languages and versions
  GET    /metrics                   Prometheus metrics
  GET    /health                    Health check`,
		RunE: runServe,
	}
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().Duration("timeout", 0, "Execution timeout (0 = none)")
	return cmd
}

type runRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type eventMessage struct {
	Type   string `json:"type"`
	Stream string `json:"stream,omitempty"`
	Text   string `json:"text,omitempty"`
	Line   int    `json:"line,omitempty"`
	Error  string `json:"error,omitempty"`
}

type languageInfo struct {
	Name      string `json:"name"`
	Display   string `json:"display"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
}

func newEventMessage(ev executor.Event) eventMessage {
	msg := eventMessage{Type: ev.Kind.String()}
	switch ev.Kind {
	case executor.EventOutput:
		msg.Stream = ev.Stream.String()
		msg.Text = ev.Text
	case executor.EventActiveLine:
		msg.Line = ev.Line
	case executor.EventError:
		msg.Error = ev.Err.Error()
	}
	return msg
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newServer(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "replshim server listening on %s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newServer(a *app) http.Handler {
	mux := http.NewServeMux()
	reg := prometheus.NewRegistry()
	metrics := newServerMetrics(reg)

	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Code == "" {
			http.Error(w, "code required", http.StatusBadRequest)
			return
		}
		if _, ok := a.registry.Get(req.Language); !ok {
			http.Error(w, fmt.Sprintf("unknown language %q", req.Language), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)

		start := time.Now()
		outcome := outcomeAbandoned
		defer func() { metrics.observeRun(req.Language, outcome, time.Since(start)) }()

		events := a.session.Stream(r.Context(), executor.Request{Language: req.Language, Code: req.Code})
		for ev := range events {
			if err := enc.Encode(newEventMessage(ev)); err != nil {
				a.logger.Debug("client went away", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			switch ev.Kind {
			case executor.EventEnd:
				outcome = outcomeEnd
			case executor.EventError:
				outcome = outcomeError
			}
		}
	})

	mux.HandleFunc("DELETE /interpreters/{language}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("language")
		if _, ok := a.registry.Get(name); !ok {
			http.Error(w, "language not found", http.StatusNotFound)
			return
		}
		if err := a.session.Terminate(name); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		metrics.terminations.WithLabelValues(name).Inc()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /languages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(describeLanguages(r.Context(), a))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}
