// Команда для HEALTHCHECK контейнера: опрашивает gRPC health API и
// завершается с кодом 1, если сервис не обслуживает запросы.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/grpc/client"
	"github.com/magabrotheeeer/gregai-backend/internal/grpc/server"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC health address")
	service := flag.String("service", server.ServiceName, "service name, empty for the whole server")
	timeout := flag.Duration("timeout", 3*time.Second, "check timeout")
	flag.Parse()

	c, err := client.NewHealthClient(*addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ok, err := c.Serving(ctx, *service)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "not serving")
		os.Exit(1)
	}
	fmt.Println("serving")
}
