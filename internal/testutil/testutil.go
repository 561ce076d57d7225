package testutil

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dom/account-backend/internal/api"
	"github.com/dom/account-backend/internal/config"
	"github.com/dom/account-backend/internal/ratelimit"
	"github.com/dom/account-backend/internal/repository"
	"github.com/dom/account-backend/internal/repository/memory"
	"github.com/dom/account-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:               "0", // Random port
		Environment:        "test",
		CORSOrigins:        []string{"https://app.example.com"},
		StoreDriver:        config.StoreMemory,
		AccessTokenSecret:  "test-access-secret-for-testing-only",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenSecret: "test-refresh-secret-for-testing-only",
		RefreshTokenTTL:    24 * time.Hour,
		CookieSecure:       true,
		BcryptCost:         bcrypt.MinCost, // Fast hashing for tests
		MaxUploadBytes:     1 << 20,
		LoginMaxAttempts:   3,
		LoginWindow:        time.Minute,
	}
}

// TestEnv wires the service layer over in-memory collaborators.
type TestEnv struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Media    *FakeMediaStore
	Limiter  *ratelimit.LoginLimiter
	Redis    *miniredis.Miniredis
	Services *service.Services
	Logger   *zap.Logger
}

type EnvOption func(*envOptions)

type envOptions struct {
	configure    func(*config.Config)
	loginLimiter bool
}

// WithConfig adjusts the test configuration before anything is built.
func WithConfig(fn func(*config.Config)) EnvOption {
	return func(o *envOptions) { o.configure = fn }
}

// WithLoginLimiter backs failed-login throttling with an in-process redis.
func WithLoginLimiter() EnvOption {
	return func(o *envOptions) { o.loginLimiter = true }
}

func NewTestEnv(t *testing.T, opts ...EnvOption) *TestEnv {
	t.Helper()

	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := TestConfig()
	cfg.UploadDir = t.TempDir()
	if o.configure != nil {
		o.configure(cfg)
	}

	env := &TestEnv{
		Config: cfg,
		Repos:  memory.NewRepositories(),
		Media:  NewFakeMediaStore(),
		Logger: zaptest.NewLogger(t),
	}

	var limiter service.LoginLimiter
	if o.loginLimiter {
		env.Redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: env.Redis.Addr()})
		t.Cleanup(func() { client.Close() })
		env.Limiter = ratelimit.NewLoginLimiter(client, cfg.LoginMaxAttempts, cfg.LoginWindow)
		limiter = env.Limiter
	}

	env.Services = service.NewServices(env.Repos, env.Media, limiter, cfg, env.Logger)
	return env
}

// TestServer holds all components for integration testing
type TestServer struct {
	*TestEnv
	Server *httptest.Server
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T, opts ...EnvOption) *TestServer {
	t.Helper()

	env := NewTestEnv(t, opts...)
	router := api.NewRouter(env.Services, env.Config, env.Logger)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
	})

	return &TestServer{TestEnv: env, Server: server}
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full URL of an account route, e.g. APIURL("/login").
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1/users%s", ts.Server.URL, path)
}
