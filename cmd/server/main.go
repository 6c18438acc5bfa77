package main

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountrepo "zetsuserv/internal/account/repository"
	accountservice "zetsuserv/internal/account/service"
	"zetsuserv/internal/audit"
	auditrepo "zetsuserv/internal/audit/repository"
	"zetsuserv/internal/clock"
	"zetsuserv/internal/config"
	"zetsuserv/internal/credential"
	"zetsuserv/internal/db"
	"zetsuserv/internal/devcode"
	"zetsuserv/internal/notify"
	orderrepo "zetsuserv/internal/order/repository"
	orderservice "zetsuserv/internal/order/service"
	"zetsuserv/internal/security"
	"zetsuserv/internal/server"
	"zetsuserv/internal/telemetry"
	teleotel "zetsuserv/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	providers, err := teleotel.NewProviders(ctx, cfg.OTLPEndpoint, "zetsuserv", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	emitter := teleotel.NewEventEmitter(providers.LoggerProvider)

	var dispatcher credential.Dispatcher
	if cfg.MailAPIKey != "" && cfg.MailAPIURL != "" {
		dispatcher = notify.NewMailer(cfg.MailAPIKey, cfg.MailAPIURL, cfg.MailSender)
	} else {
		log.Println("mail: no API key configured, deliveries go to the console")
		dispatcher = notify.Console{}
	}

	grants, err := grantProvider(cfg)
	if err != nil {
		log.Fatalf("grants: %v", err)
	}

	var devCodes devcode.Store
	if cfg.CodeReturnToClient {
		log.Println("dev code mode enabled: plaintext codes retrievable via /api/dev/code")
		devCodes = devcode.NewMemoryStore()
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), server.ClientIP)

	accounts, err := accountservice.NewAccountService(
		accountrepo.NewPostgresRepository(conn),
		hasher,
		security.SecretGenerator{},
		dispatcher,
		clock.System{},
		auditor,
		cfg.VerificationTTL(),
		cfg.ResendCooldown(),
		devCodes,
	)
	if err != nil {
		log.Fatalf("account service: %v", err)
	}

	tracking, err := orderservice.NewTrackingService(
		orderrepo.NewPostgresRepository(conn),
		hasher,
		security.SecretGenerator{},
		dispatcher,
		grants,
		clock.System{},
		auditor,
		devCodes,
	)
	if err != nil {
		log.Fatalf("tracking service: %v", err)
	}

	srv := server.New(server.Deps{
		Accounts: accounts,
		Tracking: tracking,
		Grants:   grants,
		DB:       conn,
		Emitter:  emitter,
		DevCodes: devCodes,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async telemetry emits drain before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// grantProvider builds the grant signer from configured PEM keys. Outside
// production an unset key pair falls back to a fresh ephemeral ECDSA key, so
// grants stop validating across restarts.
func grantProvider(cfg *config.Config) (*security.GrantProvider, error) {
	if cfg.GrantPrivateKey != "" && cfg.GrantPublicKey != "" {
		signer, err := security.ParsePrivateKey(cfg.GrantPrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := security.ParsePublicKey(cfg.GrantPublicKey)
		if err != nil {
			return nil, err
		}
		return security.NewGrantProvider(signer, pub, cfg.GrantIssuer, cfg.GrantAudience, cfg.GrantTTL()), nil
	}
	if cfg.Env == "production" {
		return nil, errGrantKeysRequired
	}
	log.Println("grants: no key pair configured, using an ephemeral ECDSA key")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	var pub crypto.PublicKey = &key.PublicKey
	return security.NewGrantProvider(key, pub, cfg.GrantIssuer, cfg.GrantAudience, cfg.GrantTTL()), nil
}

var errGrantKeysRequired = errors.New("GRANT_PRIVATE_KEY and GRANT_PUBLIC_KEY must be set in production")
