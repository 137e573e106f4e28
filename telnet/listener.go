/*
 * mac68k - telnet server, listener.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package telnet serves the same interactive command shell
// command/reader.ConsoleReader drives over stdio, but over a TCP socket, so
// a host front-end can attach a remote terminal without owning process
// stdio.
package telnet

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/paleoemu/mac68k/emu/machine"
)

type Server struct {
	wg       sync.WaitGroup
	listener net.Listener
	shutdown chan struct{}
	machine  *machine.Machine
	port     string
}

var servers []*Server

// Start opens a listener on port and serves the command shell against m to
// every connection it accepts.
func Start(port string, m *machine.Machine) error {
	s, err := newServer(port, m)
	if err != nil {
		return err
	}
	servers = append(servers, s)

	slog.Info("telnet server started on port " + port)

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Stop shuts down every running server, waiting up to a second for
// in-flight connections to finish.
func Stop() {
	for _, s := range servers {
		if s == nil {
			continue
		}
		slog.Info("telnet server shutting down port " + s.port)

		close(s.shutdown)
		s.listener.Close()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			slog.Warn("timed out waiting for connections to finish on port " + s.port)
		}
	}
	servers = nil
}

func newServer(port string, m *machine.Machine) (*Server, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("telnet: failed to listen on port %s: %w", port, err)
	}

	return &Server{
		listener: listener,
		shutdown: make(chan struct{}),
		machine:  m,
		port:     port,
	}, nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleClient(conn, s.machine)
		}()
	}
}
