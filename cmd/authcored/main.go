// Command authcored is a demo host that wires C1-C9 behind spec §6's
// external interface over plain HTTP. It is not a production remote signer
// or blockchain runtime; auth_contract registration and the relay's outbound
// signing calls are recorded/logged, not executed against a live signer.
//
// Usage:
//
//	authcored [-config path] [-addr host:port]
//
// Flags:
//
//	-config string   path to a YAML config file (optional)
//	-addr string     listen address, overrides the config file's listen_addr
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aptos-labs/authcore/internal/accountstore"
	"github.com/aptos-labs/authcore/internal/dispatch"
	"github.com/aptos-labs/authcore/internal/relay"
	"github.com/aptos-labs/authcore/internal/telemetry"
	"github.com/aptos-labs/authcore/internal/verify/oidc"
)

var (
	flagConfig = flag.String("config", "", "path to a YAML config file")
	flagAddr   = flag.String("addr", "", "listen address, overrides config's listen_addr")
)

func main() {
	flag.Parse()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := DefaultConfig()
	if *flagConfig != "" {
		loaded, err := LoadConfig(*flagConfig)
		if err != nil {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *flagAddr != "" {
		cfg.ListenAddr = *flagAddr
	}

	keyStore := oidc.NewKeyStore()
	for _, issuer := range cfg.OIDCIssuers {
		if err := keyStore.UpdateKeys(issuer.Issuer, issuer.Keys); err != nil {
			log.Error("bootstrap oidc keys", "issuer", issuer.Issuer, "error", err)
			os.Exit(1)
		}
	}

	tracerProvider := sdktrace.NewTracerProvider()
	meterProvider := sdkmetric.NewMeterProvider()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
	}()

	instr, err := telemetry.New(telemetry.Config{TracerProvider: tracerProvider, MeterProvider: meterProvider})
	if err != nil {
		log.Error("build instrumentation", "error", err)
		os.Exit(1)
	}

	store := accountstore.New()
	store.SetUsageRecorder(func(accountID string, deltaBytes int64) {
		log.Debug("storage usage delta", "account_id", accountID, "delta_bytes", deltaBytes)
	})

	registry := dispatch.NewVerifierRegistry(keyStore)
	caller := loggingCaller{log: log}
	d := dispatch.New(store, registry, caller, instr)

	srv := newServer(store, d, registry, keyStore, cfg.PrivilegedToken, log)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("authcored listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

// loggingCaller is the relay.Caller used when no live remote signer is
// configured: it logs each outbound signing call instead of placing it
// (spec.md's scope excludes the remote signer implementation itself).
type loggingCaller struct {
	log *slog.Logger
}

func (c loggingCaller) Call(call relay.SigningCall) error {
	c.log.Info("relay signing call",
		"request_id", call.RequestID,
		"contract_id", call.ContractID,
		"derived_path", call.DerivedPath,
		"key_version", call.KeyVersion,
		"deposit", call.Deposit.String(),
		"gas", call.Gas,
	)
	return nil
}
