// Package ctlserver is a small TCP line-protocol + WebSocket status
// server for observing and cancelling the running transmission,
// advertised over mDNS (spec.md §5 "Shared resources", SPEC_FULL.md §2
// "Control server").
//
// The accept loop and per-client goroutine are grounded on the teacher's
// src/server.go AGW socket listener (server_connect_listen_thread);
// the line protocol itself (status/stop) is this project's own,
// since the teacher's is AGWPE-specific and does not transfer.
package ctlserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/gorilla/websocket"

	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("ctlserver")

// StatusProvider is implemented by the transmitter façade; kept as a
// narrow interface so ctlserver never imports the hardware packages.
type StatusProvider interface {
	IsStopping() bool
	PrintParameters() string
}

// Stopper is implemented by the façade's shutdown path.
type Stopper interface {
	Cancel()
}

// Server accepts plain-TCP line-protocol clients and, on a second
// listener, WebSocket status-stream clients.
type Server struct {
	status  StatusProvider
	stopper Stopper

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New builds a server bound to the given façade-shaped collaborators.
func New(status StatusProvider, stopper Stopper) *Server {
	return &Server{status: status, stopper: stopper}
}

// ListenAndServe starts the TCP line-protocol listener on port and, if
// advertiseMDNS is set, announces it over mDNS via brutella/dnssd
// (grounded on the teacher's src/dns_sd.go dns_sd_announce), exactly as
// the teacher advertises its KISS-over-TCP service.
func (s *Server) ListenAndServe(ctx context.Context, port int, advertiseMDNS bool) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("ctlserver: listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if advertiseMDNS {
		s.announce(ctx, port)
	}

	log.Info("control server listening", "port", port)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn("accept failed", "error", err)
				continue
			}
		}
		go s.handleClient(conn)
	}
}

// announce advertises the control port as "_wsprrypi-ctl._tcp", matching
// the teacher's dnssd.Config / NewService / NewResponder sequence
// (src/dns_sd.go).
func (s *Server) announce(ctx context.Context, port int) {
	cfg := dnssd.Config{
		Name: "wsprrypi",
		Type: "_wsprrypi-ctl._tcp",
		Port: port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		log.Error("dns-sd: failed to create service", "error", err)
		return
	}
	responder, err := dnssd.NewResponder()
	if err != nil {
		log.Error("dns-sd: failed to create responder", "error", err)
		return
	}
	if _, err := responder.Add(svc); err != nil {
		log.Error("dns-sd: failed to add service", "error", err)
		return
	}
	go func() {
		if err := responder.Respond(ctx); err != nil {
			log.Error("dns-sd: responder exited", "error", err)
		}
	}()
}

// handleClient serves one line-protocol connection: "status" and "stop"
// commands, one per line, reply then continue (spec.md's scheduler state
// observation).
func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch cmd {
		case "status":
			state := "idle"
			if s.status.IsStopping() {
				state = "transmitting"
			}
			fmt.Fprintf(conn, "%s %s\n", state, s.status.PrintParameters())
		case "stop":
			s.stopper.Cancel()
			fmt.Fprintln(conn, "ok")
		case "":
			continue
		default:
			fmt.Fprintln(conn, "ERR unknown command")
		}
	}
}

// StatusHandler upgrades HTTP requests to a WebSocket that pushes a
// status line whenever poll fires; wire it into an *http.ServeMux at
// e.g. "/ws/status".
func (s *Server) StatusHandler(poll <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		for range poll {
			msg := s.status.PrintParameters()
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}
}

// statusPollInterval is the period of the ticker that ListenAndServeStatusWS
// feeds to StatusHandler. All connections read the same unbuffered poll
// channel, so each tick pushes a status line to one connected client only.
const statusPollInterval = time.Second

// ListenAndServeStatusWS starts an *http.Server exposing StatusHandler at
// "/ws/status", polled every statusPollInterval, alongside the TCP
// line-protocol listener started by ListenAndServe.
func (s *Server) ListenAndServeStatusWS(ctx context.Context, port int) error {
	poll := make(chan struct{})
	go func() {
		ticker := time.NewTicker(statusPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(poll)
				return
			case <-ticker.C:
				select {
				case poll <- struct{}{}:
				case <-ctx.Done():
					close(poll)
					return
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws/status", s.StatusHandler(poll))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Info("status websocket listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ctlserver: status websocket: %w", err)
	}
	return nil
}

// Close stops accepting new TCP clients and, if running, the status
// WebSocket listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.listener != nil {
		firstErr = s.listener.Close()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
