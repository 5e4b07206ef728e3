// Command gosession drives a session engine from the shell.
//
// Usage:
//
//	gosession [flags] status
//	gosession [flags] login <email> <password>
//	gosession [flags] admin-login <email> <password>
//	gosession [flags] logout
//	gosession [flags] revalidate
//	gosession [flags] watch
//
// Configuration is read from GOSESSION_* environment variables first; flags override it.
// The default store is a JSON file under the user config directory. With -store redis and
// no -redis-addr (or REDIS_ADDR) an in-process miniredis is used, which forgets the session
// on exit.
//
// Federated sessions are never persisted, so admin-login only lasts for the process; combine
// it with -watch to keep following the provider.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
