package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"catalyst.org/internal/channel"
	"catalyst.org/internal/config"
	"catalyst.org/internal/httpapi"
	"catalyst.org/internal/identity"
	"catalyst.org/internal/invites"
	"catalyst.org/internal/keys"
	"catalyst.org/internal/obs"
	"catalyst.org/internal/registry"
	"catalyst.org/internal/relation"
	"catalyst.org/internal/sharing"
	"catalyst.org/internal/token"
)

var version = "0.3.1"

// lazyAuthenticator defers authenticator binding until the identity resolver
// exists. All calls happen after main finishes wiring.
type lazyAuthenticator struct {
	inner registry.Authenticator
}

func (l *lazyAuthenticator) OrganizationForToken(ctx context.Context, tok string) (string, error) {
	if l.inner == nil {
		return "", errors.New("authenticator not initialized")
	}
	return l.inner.OrganizationForToken(ctx, tok)
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, "")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *sql.DB
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var rel relation.Client
	if cfg.RelationBackendURL != "" {
		rel, err = relation.NewHTTPClient(cfg.RelationBackendURL, cfg.RelationPrefix, cfg.RelationTimeout)
		if err != nil {
			log.Fatalf("relation backend: %v", err)
		}
	} else {
		rel = relation.NewInMemory()
	}

	var channels channel.Registrar
	if cfg.ChannelRegistrarURL != "" {
		channels, err = channel.NewHTTPRegistrar(cfg.ChannelRegistrarURL, cfg.RelationTimeout)
		if err != nil {
			log.Fatalf("channel registrar: %v", err)
		}
	} else {
		channels = channel.NewInMemory()
	}

	var keyStore keys.Store
	var registryStore registry.Store
	var inviteStore invites.Store
	if db != nil {
		keyStore = keys.NewPGStore(db)
		registryStore = registry.NewPGStore(db)
		inviteStore = invites.NewPGStore(db)
	} else {
		keyStore = keys.NewMemoryStore()
		registryStore = registry.NewMemoryStore()
		inviteStore = invites.NewMemoryStore()
	}

	provider := keys.NewProvider(keyStore)

	// The registry authenticates callers with tokens the validator checks,
	// and the validator consults the registry for revocations. The cycle is
	// broken with a late-bound authenticator.
	authn := &lazyAuthenticator{}
	registrySvc, err := registry.NewService(registryStore, authn, cfg.RegistryServices)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	validator, err := token.NewValidator(provider, registrySvc)
	if err != nil {
		log.Fatalf("validator: %v", err)
	}
	resolver, err := identity.NewResolver(validator, rel, cfg.Namespace)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	authn.inner = resolver

	signer, err := token.NewSigner(provider, registrySvc, token.SignerConfig{
		UserTokenTTL:    cfg.UserTokenTTL,
		SystemAudience:  cfg.SystemAudience,
		AllowedServices: cfg.SignerServices,
	})
	if err != nil {
		log.Fatalf("signer: %v", err)
	}

	sharingSvc, err := sharing.NewService(rel, channels, resolver, cfg.Namespace)
	if err != nil {
		log.Fatalf("sharing: %v", err)
	}
	invitesSvc, err := invites.NewService(inviteStore, rel)
	if err != nil {
		log.Fatalf("invites: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Signer:    signer,
		Validator: validator,
		Keys:      provider,
		Registry:  registrySvc,
		Sharing:   sharingSvc,
		Invites:   invitesSvc,
		Identity:  resolver,
		Namespace: cfg.Namespace,
		Version:   version,
		Ready:     httpapi.ReadyProbe{DB: db},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting catalyst-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
