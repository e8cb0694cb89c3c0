// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package live streams the latest FusedReading to connected WebSocket
// clients, the live-state half of the dashboard interface named in
// spec section 1. The upgrader/broadcast pattern follows
// HandleCalibrationWS in the teacher's calibration handler.
package live

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion-tracker/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server streams FusedReadings to any number of connected WebSocket
// clients. A client whose send queue is full misses that reading rather
// than blocking the broadcast; it stays connected.
type Server struct {
	log *logrus.Entry

	mu      sync.Mutex
	clients map[*websocket.Conn]chan types.FusedReading
}

// NewServer constructs an empty Server.
func NewServer(log *logrus.Entry) *Server {
	return &Server{
		log:     log,
		clients: make(map[*websocket.Conn]chan types.FusedReading),
	}
}

// HandleWS upgrades the HTTP connection and streams FusedReadings to
// it until the client disconnects.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("live: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan types.FusedReading, 8)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for reading := range ch {
		if err := conn.WriteJSON(reading); err != nil {
			return
		}
	}
}

// Broadcast sends reading to every connected client, dropping it for
// any client whose queue is full.
func (s *Server) Broadcast(reading types.FusedReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.clients {
		select {
		case ch <- reading:
		default:
		}
	}
}

// ClientCount reports the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
