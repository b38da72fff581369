package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/bootstrap"
	"codexbase.org/internal/httpapi"
	"codexbase.org/internal/oauth"
	"codexbase.org/internal/obs"
	"codexbase.org/internal/store/memory"
	"codexbase.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Postgres when a DSN is set, in-memory otherwise (dev mode; state is
	// lost on restart).
	var (
		agentStore agent.Store
		oauthStore oauth.Store
		probe      httpapi.ReadyProbe
	)
	if dsn := os.Getenv("CODEX_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		agentStore = store
		oauthStore = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		log.Println("CODEX_PG_DSN not set, using in-memory store")
		store := memory.New()
		agentStore = store
		oauthStore = store
	}

	agents := agent.NewService(agentStore)

	var opts []oauth.ServerOption
	if issuer := os.Getenv("CODEX_ISSUER"); issuer != "" {
		opts = append(opts, oauth.WithIssuer(issuer))
	}
	if secret := os.Getenv("CODEX_OIDC_SECRET"); secret != "" {
		opts = append(opts, oauth.WithIDTokenSecret([]byte(secret)))
	}
	auth := oauth.NewServer(oauthStore, agents, opts...)

	// Seed the root admin, base groups and the first-party client when
	// credentials are provided.
	if email := os.Getenv("CODEX_ROOT_ADMIN_EMAIL"); email != "" {
		seeder := bootstrap.New(agents, agentStore, oauthStore)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, err := seeder.Run(ctx, bootstrap.Config{
			RootAdminEmail:         email,
			RootAdminPassword:      os.Getenv("CODEX_ROOT_ADMIN_PASSWORD"),
			RootAdminName:          os.Getenv("CODEX_ROOT_ADMIN_NAME"),
			RootClientRedirectURIs: splitList(os.Getenv("CODEX_ROOT_CLIENT_REDIRECT_URIS")),
		})
		cancel()
		if err != nil {
			log.Fatalf("bootstrap: %v", err)
		}
		if res.RootClientSecret != "" {
			// Shown once, on first boot only.
			log.Printf("bootstrap: root client %s secret %s", res.RootClientID, res.RootClientSecret)
		}
	}

	api := httpapi.New(probe, version, agents, auth)
	handler := httpapi.Logging(
		httpapi.SecurityHeaders(
			httpapi.CORS(
				httpapi.MaxBodyBytes(
					httpapi.RateLimit(api.Handler(), 50, 25),
					1<<20))))

	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting codexbase-trust %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// gRPC health endpoint alongside the HTTP listener.
	grpcCtx, grpcCancel := context.WithCancel(context.Background())
	defer grpcCancel()
	if addr := os.Getenv("CODEX_GRPC_ADDR"); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		gs := httpapi.NewGRPCServer(probe)
		go func() {
			if err := gs.Serve(grpcCtx, lis); err != nil {
				log.Printf("grpc: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	grpcCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func listenAddr() string {
	if addr := os.Getenv("CODEX_HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
