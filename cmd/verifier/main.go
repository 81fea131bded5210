package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"
	"golang.org/x/sync/errgroup"

	"github.com/didpop/verifier/challenge"
	"github.com/didpop/verifier/cmd"
	"github.com/didpop/verifier/nonce"
	"github.com/didpop/verifier/verifypipeline"
	"github.com/didpop/verifier/wfe"
)

// defaultVerifyMethod, defaultVerifyPath, defaultNonceTTLSeconds, and
// defaultClockSkewSeconds are spec.md §6's "Configuration (recognized
// options and effects)" defaults, applied below when a config file leaves
// the corresponding field unset.
const (
	defaultVerifyMethod        = "POST"
	defaultVerifyPath          = "/verify"
	defaultNonceTTLSeconds     = 120
	defaultClockSkewSeconds    = 120
	defaultShutdownStopTimeout = 10 * time.Second
)

// applyDefaults fills in any option spec.md §6 names a default for and that
// was left zero-valued in the loaded config.
func applyDefaults(c *cmd.Config) {
	if c.Verifier.VerifyMethod == "" {
		c.Verifier.VerifyMethod = defaultVerifyMethod
	}
	if c.Verifier.VerifyPath == "" {
		c.Verifier.VerifyPath = defaultVerifyPath
	}
	if c.Verifier.NonceTTLSeconds == 0 {
		c.Verifier.NonceTTLSeconds = defaultNonceTTLSeconds
	}
	if c.Verifier.ClockSkewSeconds == 0 {
		c.Verifier.ClockSkewSeconds = defaultClockSkewSeconds
	}
	if c.Verifier.ShutdownStopTimeout.Duration == 0 {
		c.Verifier.ShutdownStopTimeout.Duration = defaultShutdownStopTimeout
	}
}

func buildStore(c cmd.Config, clk clock.Clock) nonce.Store {
	if c.Verifier.NonceStore.RedisAddress == "" {
		return nonce.NewMemStore(clk)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Verifier.NonceStore.RedisAddress,
		Password: string(c.Verifier.NonceStore.RedisPassword),
		DB:       c.Verifier.NonceStore.RedisDB,
	})
	return nonce.NewRedisStore(client)
}

func main() {
	configFile := flag.String("config", "", "File path to the configuration file for this service")
	flag.Parse()
	if *configFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	var c cmd.Config
	err := cmd.ReadConfigFile(*configFile, &c)
	cmd.FailOnError(err, "Reading JSON config file into config structure")
	applyDefaults(&c)

	scope, logger := cmd.StatsAndLogging(c.Syslog, "verifier")
	logger.Info("Verifier starting")

	clk := clock.Default()

	store := buildStore(c, clk)
	mem, isMemStore := store.(*nonce.MemStore)

	nonceTTL := time.Duration(c.Verifier.NonceTTLSeconds) * time.Second
	issuer := challenge.NewIssuer(store, clk, nonceTTL, c.Verifier.Audience)
	pipeline := verifypipeline.NewPipeline(store, clk, verifypipeline.Config{
		Audience:      c.Verifier.Audience,
		VerifyMethod:  c.Verifier.VerifyMethod,
		VerifyPath:    c.Verifier.VerifyPath,
		ClockSkewSecs: int64(c.Verifier.ClockSkewSeconds),
	})

	front := wfe.NewWebFrontEndImpl(issuer, pipeline, logger, scope, clk)

	srv := &http.Server{
		Addr:    c.Verifier.ListenAddress,
		Handler: front.Handler(),
	}

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		logger.Info(fmt.Sprintf("Server running, listening on %s...", c.Verifier.ListenAddress))
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if isMemStore && c.Verifier.NonceReapInterval.Duration > 0 {
		stopReap := make(chan struct{})
		group.Go(func() error {
			mem.ReapLoop(c.Verifier.NonceReapInterval.Duration, c.Verifier.NonceReapGrace.Duration, stopReap)
			return nil
		})
		go func() {
			<-ctx.Done()
			close(stopReap)
		}()
	}

	if c.Verifier.DebugAddr != "" {
		go cmd.DebugServer(c.Verifier.DebugAddr)
	}

	done := make(chan bool)
	go cmd.CatchSignals(logger, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Verifier.ShutdownStopTimeout.Duration)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		done <- true
	})

	// https://pkg.go.dev/net/http#Server.Shutdown: Shutdown causes
	// ListenAndServe to return ErrServerClosed immediately. Wait instead
	// for the shutdown callback to signal completion.
	<-done
}
