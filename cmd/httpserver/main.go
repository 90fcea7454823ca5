// Command httpserver runs a small demo HTTP/1.1 server on top of pkg/server
// and pkg/router: a couple of static routes, one path-parameter route, and
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/log"
	"github.com/corewire/httpcore/pkg/router"
	"github.com/corewire/httpcore/pkg/server"
	"github.com/corewire/httpcore/pkg/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "listen address")
	port := flag.Uint("port", 8080, "listen port")
	flag.Parse()

	rt := router.New()
	srv := server.New([]server.ListenerConfig{
		{Addr: *addr, Port: uint16(*port)},
	}, rt)

	srv.Handle(wire.GET, "/", func(req *wire.Request, params map[string]string) (*wire.Response, error) {
		h := wire.NewHeaders()
		h.SetContentType("text/plain", "")
		return &wire.Response{Status: wire.Status{Code: 200, Msg: "OK"}, Headers: h, Body: []byte("httpcore demo server\n")}, nil
	})

	srv.Handle(wire.GET, "/users/:id", func(req *wire.Request, params map[string]string) (*wire.Response, error) {
		h := wire.NewHeaders()
		h.SetContentType("text/plain", "")
		return &wire.Response{
			Status:  wire.Status{Code: 200, Msg: "OK"},
			Headers: h,
			Body:    []byte("user id: " + params["id"] + "\n"),
		}, nil
	})

	srv.Handle(wire.GET, "/admin", func(req *wire.Request, params map[string]string) (*wire.Response, error) {
		return nil, errors.NewErrorResponse(403, "forbidden")
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.With(nil).Infof("listening on %s:%d", *addr, *port)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}
