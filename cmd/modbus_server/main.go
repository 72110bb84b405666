// Command modbus_server bridges a local modbus RTU port to HTTP so the
// turret daemon can use it from another host (link kind "modbus" with a url).
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/goburrow/modbus"
	"github.com/gorilla/mux"
	"github.com/w1xm/turret_interface/internal/modbus/modbushttp"
)

var (
	addr       = flag.String("addr", "127.0.0.1:8502", "address to listen on")
	password   = flag.String("password", "", "password to require on remote connections")
	serialPort = flag.String("serial", "", "turret bus serial port name")
	baud       = flag.Int("baud", 19200, "turret bus baud rate")
)

// sender sends one request ADU and returns the response ADU.
type sender interface {
	Send(aduRequest []byte) (aduResponse []byte, err error)
}

type Server struct {
	handler  sender
	password string
}

func NewServer(port string, baud int, password string) *Server {
	handler := modbus.NewRTUClientHandler(port)
	handler.BaudRate = baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	return &Server{
		handler:  handler,
		password: password,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/api/send", http.HandlerFunc(s.SendHandler)).Methods("POST")
	return r
}

func (s *Server) SendHandler(w http.ResponseWriter, r *http.Request) {
	if s.password != "" {
		_, pass, ok := r.BasicAuth()
		if !ok || pass != s.password {
			http.Error(w, "wrong password", http.StatusUnauthorized)
			return
		}
	}
	err := func() error {
		aduRequest, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		// The slave id travels inside the ADU, so one port serves every
		// board on the bus.
		aduResponse, err := s.handler.Send(aduRequest)
		var errString string
		if err != nil {
			errString = err.Error()
		}
		body, err := json.Marshal(&modbushttp.SendResponse{
			ADUResponse: aduResponse,
			Error:       errString,
		})
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
		_, err = w.Write(body)
		return err
	}()
	if err != nil {
		log.Printf("SendHandler: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func main() {
	flag.Parse()
	server := NewServer(*serialPort, *baud, *password)
	r := server.Router()
	r.PathPrefix("/debug").Handler(http.DefaultServeMux)
	srv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Printf("Listening on %v", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}
