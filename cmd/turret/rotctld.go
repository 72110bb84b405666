package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/w1xm/turret_interface/turret"
)

// ListenRotctld accepts hamlib rotctld connections so rotator clients can
// aim the turret. Azimuth is yaw and elevation is pitch.
func (s *Server) ListenRotctld(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing rotctld socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("failed to accept: %v", err)
				}
				continue
			}
			go s.handleRotctld(conn)
		}
	}()
	return nil
}

func (s *Server) handleRotctld(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	s.serveRotctld(conn, conn.RemoteAddr().String())
}

func (s *Server) serveRotctld(rw io.ReadWriter, name string) {
	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		// Two forms of command: single character, or "+\" followed by command name.
		cmd := scanner.Text()
		var args []string
		var extended bool
		if len(cmd) == 0 {
			continue
		} else if len(cmd) > 2 && cmd[0:2] == `+\` {
			extended = true
			parts := strings.Split(cmd, " ")
			cmd = parts[0][2:]
			if len(parts) > 1 {
				args = parts[1:]
			}
			fmt.Fprintf(rw, "%s:\n", cmd)
		} else {
			// Space after command is optional.
			if len(cmd) > 1 {
				args = strings.Fields(strings.TrimLeft(cmd[1:], " "))
			}
			cmd = string(cmd[0])
		}
		log.Printf("%v command: %q args: %#v", name, cmd, args)
		rprt := -1
		p := s.t.Parameters()
		switch cmd {
		case "1", "dump_caps":
			fmt.Fprintf(rw, `Model name: Turret
Mfg name: W1XM
Rot type: Az-El
Min Azimuth: %.2f
Max Aximuth: %.2f
Min Elevation: %.2f
Max Elevation: %.2f
Can set Position: Y
Can get Position: Y
Can Stop: Y
Can Park: N
Can Reset: N
Can Move: Y
Can get Info: N
`, p.MinXDeg, p.MaxXDeg, p.MinYDeg, p.MaxYDeg)
			rprt = 0
		case "S", "stop":
			extended = true // always print RPRT
			s.submitOwn(turret.Command{Rate: &turret.Rate{}})
			rprt = 0
		case "P", "set_pos":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			az, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				rprt = -22
				break
			}
			el, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				rprt = -22
				break
			}
			s.submitOwn(turret.Command{Absolute: &turret.Position{X: az, Y: el}})
			rprt = 0
		case "M", "move":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			dir, err := strconv.Atoi(args[0])
			if err != nil {
				rprt = -22
				break
			}
			// Speed is 0-100. We divide by 10 to get deg/sec.
			speed, err := strconv.Atoi(args[1])
			if err != nil {
				rprt = -22
				break
			}
			rate := float64(speed) / 10
			switch dir {
			case 2: // Up
				s.submitOwn(turret.Command{Rate: &turret.Rate{Y: rate}})
				rprt = 0
			case 4: // Down
				s.submitOwn(turret.Command{Rate: &turret.Rate{Y: -rate}})
				rprt = 0
			case 8: // Left
				s.submitOwn(turret.Command{Rate: &turret.Rate{X: -rate}})
				rprt = 0
			case 16: // Right
				s.submitOwn(turret.Command{Rate: &turret.Rate{X: rate}})
				rprt = 0
			default:
				rprt = -22
			}
		case "p", "get_pos":
			status := s.t.Status()
			if extended {
				fmt.Fprintf(rw, "Azimuth: %.6f\nElevation: %.6f\n", status.Imu.X, status.Imu.Y)
			} else {
				fmt.Fprintf(rw, "%.6f\n%.6f\n", status.Imu.X, status.Imu.Y)
			}
			rprt = 0
		}
		if extended || rprt != 0 {
			fmt.Fprintf(rw, "RPRT %d\n", rprt)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", name, err)
	}
}
