package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/federated"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNoActive = 3
)

type options struct {
	backendURL       string
	store            string
	filePath         string
	redisAddr        string
	directoryURL     string
	federatedURL     string
	federatedKey     string
	failClosed       bool
	validateInterval time.Duration
	watch            bool
	logLevel         string
	jsonOut          bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("gosession", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.backendURL, "backend", "", "REST backend base URL (GOSESSION_BACKEND_URL)")
	fs.StringVar(&o.store, "store", "", "session store: file, redis or memory (GOSESSION_STORAGE_DRIVER)")
	fs.StringVar(&o.filePath, "file", "", "session file for -store file")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&o.directoryURL, "directory", "", "admin directory base URL (GOSESSION_REVOCATION_DIRECTORY_URL)")
	fs.StringVar(&o.federatedURL, "federated-endpoint", "", "federated identity provider sign-in endpoint")
	fs.StringVar(&o.federatedKey, "federated-key", "", "federated identity provider API key")
	fs.BoolVar(&o.failClosed, "fail-closed", false, "refuse admins while the directory is unreachable")
	fs.DurationVar(&o.validateInterval, "validate-interval", 0, "revalidate the token periodically while watching")
	fs.BoolVar(&o.watch, "watch", false, "keep running after the command and print session changes")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fs.BoolVar(&o.jsonOut, "json", false, "print sessions as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return o, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "usage: gosession [flags] status|login|admin-login|logout|revalidate|watch")
		return exitUsage
	}
	cmd, cmdArgs := rest[0], rest[1:]

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLevel(opts.logLevel)}))

	cfg, err := goSession.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}
	if err := applyFlags(&cfg, opts); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}

	b := goSession.New().WithConfig(cfg).WithLogger(logger)

	if cfg.Storage.Driver == goSession.StorageRedis || cfg.LoginThrottle.Enabled {
		client, cleanup, err := redisClient(opts.redisAddr, logger)
		if err != nil {
			fmt.Fprintf(stderr, "redis: %v\n", err)
			return exitFailure
		}
		defer cleanup()
		b = b.WithRedis(client)
	}

	if opts.federatedURL != "" {
		provider, err := federated.NewREST(federated.RESTConfig{
			Endpoint: opts.federatedURL,
			APIKey:   opts.federatedKey,
		})
		if err != nil {
			fmt.Fprintf(stderr, "federated provider: %v\n", err)
			return exitUsage
		}
		b = b.WithFederatedProvider(provider)
	}

	engine, err := b.Build()
	if err != nil {
		fmt.Fprintf(stderr, "build: %v\n", err)
		return exitUsage
	}
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "start: %v\n", err)
		return exitFailure
	}

	code := dispatch(ctx, engine, cmd, cmdArgs, opts, stdout, stderr)
	if code == exitUsage || (!opts.watch && cmd != "watch") {
		return code
	}
	watch(ctx, engine, opts, stdout)
	return code
}

func dispatch(ctx context.Context, engine *goSession.Engine, cmd string, args []string, opts *options, stdout, stderr io.Writer) int {
	switch cmd {
	case "status":
		// Let the optimistic restore be confirmed or rejected before reporting.
		engine.Wait()
		s := engine.Session()
		printSession(stdout, s, opts.jsonOut)
		if !s.Active() {
			return exitNoActive
		}
		return exitOK

	case "login", "admin-login":
		if len(args) != 2 {
			fmt.Fprintf(stderr, "usage: gosession %s <email> <password>\n", cmd)
			return exitUsage
		}
		login := engine.LoginUser
		if cmd == "admin-login" {
			login = engine.LoginAdmin
		}
		res, err := login(ctx, args[0], args[1])
		if err != nil {
			fmt.Fprintf(stderr, "%s failed: %s\n", cmd, res.Error)
			return exitFailure
		}
		printSession(stdout, engine.Session(), opts.jsonOut)
		return exitOK

	case "logout":
		engine.Logout(ctx)
		printSession(stdout, engine.Session(), opts.jsonOut)
		return exitOK

	case "revalidate":
		engine.Wait()
		if err := engine.Revalidate(ctx); err != nil {
			fmt.Fprintf(stderr, "revalidate: %v\n", err)
			if errors.Is(err, goSession.ErrEngineNotReady) {
				return exitNoActive
			}
			return exitFailure
		}
		printSession(stdout, engine.Session(), opts.jsonOut)
		return exitOK

	case "watch":
		printSession(stdout, engine.Session(), opts.jsonOut)
		return exitOK
	}

	fmt.Fprintf(stderr, "unknown command %q\n", cmd)
	return exitUsage
}

// watch prints every session change until ctx ends.
func watch(ctx context.Context, engine *goSession.Engine, opts *options, stdout io.Writer) {
	changes := engine.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-changes:
			if !ok {
				return
			}
			printSession(stdout, s, opts.jsonOut)
		}
	}
}

func applyFlags(cfg *goSession.Config, o *options) error {
	if o.backendURL != "" {
		cfg.Backend.BaseURL = o.backendURL
	}
	if o.store != "" {
		cfg.Storage.Driver = goSession.StorageDriver(strings.ToLower(o.store))
	}
	if o.filePath != "" {
		cfg.Storage.FilePath = o.filePath
		if o.store == "" {
			cfg.Storage.Driver = goSession.StorageFile
		}
	}
	if cfg.Storage.Driver == goSession.StorageMemory && o.store == "" && o.filePath == "" {
		// A one-shot process forgets a memory session; default to the file store.
		cfg.Storage.Driver = goSession.StorageFile
	}
	if cfg.Storage.Driver == goSession.StorageFile && cfg.Storage.FilePath == "" {
		path, err := defaultSessionFile()
		if err != nil {
			return err
		}
		cfg.Storage.FilePath = path
	}
	if o.directoryURL != "" {
		cfg.Revocation.DirectoryURL = o.directoryURL
	}
	if o.failClosed {
		cfg.Revocation.FailPolicy = goSession.FailClosed
	}
	if o.validateInterval > 0 {
		cfg.Validation.Interval = o.validateInterval
	}
	return cfg.Validate()
}

func defaultSessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate session file: %w", err)
	}
	return filepath.Join(dir, "gosession", "session.json"), nil
}

func redisClient(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Debug("using redis", "addr", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Warn("no redis address; using in-process miniredis, sessions will not survive exit", "addr", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return level
}

func printSession(w io.Writer, s goSession.Session, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(s)
		return
	}
	if !s.Active() {
		fmt.Fprintf(w, "%s\n", s.Status)
		return
	}
	fmt.Fprintf(w, "%s %s %s (%s, role %s)\n", s.Status, s.Source, s.User.Email, s.User.Name, s.User.Role)
}
