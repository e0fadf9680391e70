// Command server runs the bruecke gateway: an OpenAI-compatible chat
// completion endpoint bridged onto a bot-platform backend.
//
// Configuration is layered (defaults, YAML file, BRUECKE_* environment
// variables); see pkg/config. The config file path can be given with
// -config.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rhuss/bruecke/pkg/auth"
	"github.com/rhuss/bruecke/pkg/bridge"
	"github.com/rhuss/bruecke/pkg/config"
	"github.com/rhuss/bruecke/pkg/debug"
	"github.com/rhuss/bruecke/pkg/observability"
	transporthttp "github.com/rhuss/bruecke/pkg/transport/http"
	"github.com/rhuss/bruecke/pkg/uploads"
	"github.com/rhuss/bruecke/pkg/upstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	// Upstream client.
	client, err := upstream.New(upstream.Config{
		Host:           cfg.Upstream.Host,
		ChatPath:       cfg.Upstream.ChatPath,
		VisionChatPath: cfg.Upstream.VisionChatPath,
		UploadPath:     cfg.Upstream.UploadPath,
		Timeout:        cfg.Upstream.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}
	defer client.Close()

	// Optional upload store for multipart image requests.
	var store *uploads.Store
	if cfg.Uploads.Enabled {
		store, err = uploads.New(cfg.Uploads.Dir, cfg.Uploads.PublicBaseURL, slog.Default())
		if err != nil {
			return fmt.Errorf("creating upload store: %w", err)
		}
		slog.Info("uploads enabled", "dir", cfg.Uploads.Dir, "base_url", cfg.Uploads.PublicBaseURL)
	} else {
		slog.Info("uploads disabled")
	}

	// Core bridge service.
	normalizer := bridge.NewNormalizer(bridge.NormalizerConfig{
		Models:        cfg.Models.Table,
		DefaultBot:    cfg.Models.DefaultBot,
		DefaultCaller: cfg.Models.DefaultCaller,
	}, client, slog.Default())
	svc := bridge.NewService(normalizer, client, slog.Default())

	// Transport server with the default middleware chain.
	srv := transporthttp.NewServer(svc, store, modelNames(cfg.Models.Table),
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	// Root mux: API plus health and metrics endpoints.
	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	// Serve saved uploads under the path component of the public base URL,
	// so the upstream can fetch the images the gateway hands it.
	var uploadsPrefix string
	if store != nil {
		if u, err := url.Parse(cfg.Uploads.PublicBaseURL); err == nil && u.Path != "" && u.Path != "/" {
			uploadsPrefix = strings.TrimRight(u.Path, "/") + "/"
			mux.Handle("GET "+uploadsPrefix, http.StripPrefix(uploadsPrefix, store.Handler()))
		}
	}

	var handler http.Handler = mux
	if cfg.Observability.Metrics.Enabled {
		observability.Register(prometheus.DefaultRegisterer)
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		handler = observability.MetricsMiddleware(handler)
	}

	// Optional gatekeeping in front of the pass-through bearer token.
	chain, err := buildAuthChain(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	// The upstream fetches served images without a bearer token, so the
	// uploads prefix skips the gate alongside health and metrics.
	bypass := auth.DefaultBypassEndpoints
	if uploadsPrefix != "" {
		bypass = append(append([]string{}, bypass...), uploadsPrefix)
	}
	handler = auth.Middleware(chain, bypass)(handler)

	handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(handler)

	srv.SetHandler(handler)

	slog.Info("gateway starting",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.Host,
		"models", len(cfg.Models.Table),
		"auth", cfg.Auth.Type,
	)
	return srv.ListenAndServe()
}

// buildAuthChain assembles the authenticator chain from config. Type
// "none" leaves the chain open: the adapter still requires a bearer
// header, but any value passes through.
func buildAuthChain(cfg *config.AuthConfig) (*auth.Chain, error) {
	switch cfg.Type {
	case "", "none":
		return &auth.Chain{DefaultDecision: auth.Yes}, nil

	case "apikey":
		keys := make([]auth.APIKey, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			keys = append(keys, auth.APIKey{Key: k.Key, Subject: k.Subject})
		}
		return &auth.Chain{
			Authenticators:  []auth.Authenticator{auth.NewAPIKeyAuthenticator(keys)},
			DefaultDecision: auth.No,
		}, nil

	case "jwt":
		authn, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		return &auth.Chain{
			Authenticators:  []auth.Authenticator{authn},
			DefaultDecision: auth.No,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

// modelNames lists the routing table keys in stable order for /v1/models.
func modelNames(table map[string]string) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
