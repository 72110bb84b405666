package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/w1xm/turret_interface/cmdlog"
	"github.com/w1xm/turret_interface/turret"
)

type Server struct {
	t     *turret.Turret
	store *cmdlog.Store

	// seq numbers commands the server originates itself.
	seq atomic.Int64

	mu    sync.Mutex
	laser bool
}

func NewServer(t *turret.Turret, store *cmdlog.Store) *Server {
	s := &Server{t: t, store: store}
	s.seq.Store(time.Now().UnixNano())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(s.StatusHandler)).Methods("GET")
	r.Handle("/api/command", http.HandlerFunc(s.CommandHandler)).Methods("POST")
	r.Handle("/api/commands", http.HandlerFunc(s.CommandsHandler)).Methods("GET")
	r.Handle("/api/ws", http.HandlerFunc(s.StatusSocketHandler))
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		log.Print(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// submit forwards a client command, remembering its laser state for
// commands the server sends on its own behalf.
func (s *Server) submit(cmd turret.Command) {
	s.mu.Lock()
	s.laser = cmd.LaserOn
	s.mu.Unlock()
	s.t.SetCommand(cmd)
}

// submitOwn sends a command with a server-assigned sequence number. The
// laser stays as the last client left it.
func (s *Server) submitOwn(cmd turret.Command) {
	cmd.Sequence = s.seq.Add(1)
	s.mu.Lock()
	cmd.LaserOn = s.laser
	s.mu.Unlock()
	s.t.SetCommand(cmd)
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.t.Status())
}

func (s *Server) CommandHandler(w http.ResponseWriter, r *http.Request) {
	var cmd turret.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.submit(cmd)
	w.WriteHeader(http.StatusAccepted)
}

// CommandsHandler lists the most recent commands, newest first.
func (s *Server) CommandsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "command log disabled", http.StatusNotFound)
		return
	}
	limit := 100
	if v := r.FormValue("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	commands, err := s.store.Recent(limit)
	if err != nil {
		log.Print(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if commands == nil {
		commands = []turret.CommandLog{}
	}
	writeJSON(w, commands)
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	id, updates := s.t.Publisher().Subscribe()
	defer s.t.Publisher().Unsubscribe(id)

	// Read and process incoming messages
	go func() {
		for {
			var cmd turret.Command
			if err := conn.ReadJSON(&cmd); err != nil {
				cancel()
				break
			}
			s.submit(cmd)
		}
	}()

	send := func(status turret.Data) bool {
		if err := conn.WriteJSON(status); err != nil {
			log.Print(err)
			return false
		}
		return true
	}

	if !send(s.t.Status()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok || !send(status) {
				return
			}
		}
	}
}
