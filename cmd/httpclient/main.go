// Command httpclient issues one GET request through pkg/client's AsyncClient
// and prints the response status, headers, and timing breakdown.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/corewire/httpcore/pkg/client"
	"github.com/corewire/httpcore/pkg/wire"
)

func main() {
	host := flag.String("host", "example.com", "target host")
	port := flag.Uint("port", 443, "target port")
	path := flag.String("path", "/", "request path")
	useTLS := flag.Bool("tls", true, "use TLS")
	flag.Parse()

	c := client.Start(client.Config{
		Host:           *host,
		Port:           uint16(*port),
		TLS:            *useTLS,
		MaxConnections: 1,
	})
	defer c.Exit()

	req := &wire.Request{Method: wire.GET, RawUrl: *path}
	ar := c.Queue(req)

	resp, err := ar.Result()
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s %d %s\n", wire.Version{Major: 1, Minor: 1}, resp.Status.Code, resp.Status.Msg)
	resp.Headers.Each(func(name, value string) {
		fmt.Printf("%s: %s\n", name, value)
	})
	fmt.Printf("\n%d bytes body\n", len(resp.Body))
	fmt.Printf("timing: %s\n", ar.Timing.String())
}
