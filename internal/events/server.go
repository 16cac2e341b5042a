package events

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"
)

// Server accepts TCP subscribers for the event feed.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts subscribers on ln until ctx is cancelled, then closes ln and
// every connected subscriber.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.Hub.log.With("transport", "tcp")
	log.Info("event feed listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.Hub.Close()
				return nil
			}
			log.Warn("accept failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, _ = conn.Write(s.Hub.welcome("tcp"))
		s.Hub.Add(conn)
		log.Info("subscriber connected", "remote", conn.RemoteAddr().String())

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.Info("subscriber disconnected", "remote", c.RemoteAddr().String())
			}()

			// Incoming lines are ignored; reading detects disconnects.
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
