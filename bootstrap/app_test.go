package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/warden/auth"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/config"
	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/kvconfig"
	"github.com/ceyewan/warden/pipeline"
	"github.com/ceyewan/warden/registrar"
	"github.com/ceyewan/warden/registry"
)

const (
	authKey    = "warden/auth"
	testSecret = "0123456789abcdef0123456789abcdef"
	authDoc    = `{"secretKey":"` + testSecret + `","issuer":"warden-auth","audience":"warden-api",` +
		`"accessTokenLifetimeInMinutes":15,"refreshTokenLifetimeInMinutes":1440}`
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(seed map[string]string) *Config {
	return &Config{
		App:      AppConfig{Name: "tasks"},
		Server:   ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: 5 * time.Second},
		KVConfig: KVConfig{Driver: KVDriverMemory, Key: authKey, Seed: seed},
	}
}

func bearer(t *testing.T) string {
	t.Helper()
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "warden-auth",
		Audience:  jwt.ClaimStrings{"warden-api"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

type echoRequest struct {
	Message string `json:"message" validate:"required"`
}

type echoResponse struct {
	Message string `json:"message"`
}

func get(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func post(t *testing.T, url, body, authorization string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &Config{
			App:      AppConfig{Name: "tasks"},
			Server:   ServerConfig{Addr: ":8080"},
			KVConfig: KVConfig{Driver: "MEMORY", Key: authKey},
		}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
		assert.Equal(t, pipeline.DefaultAuthPrefix, cfg.Server.AuthPrefix)
		assert.Equal(t, registry.DriverMemory, cfg.Registry.Driver)
		assert.Equal(t, KVDriverMemory, cfg.KVConfig.Driver)
		assert.Equal(t, "tasks", cfg.Registrar.ServiceName)
		assert.Equal(t, 8080, cfg.Registrar.ServicePort)
		assert.Equal(t, "tasks", cfg.Metrics.ServiceName)
		assert.Equal(t, "tasks", cfg.Trace.ServiceName)
	})

	t.Run("registry address from connector", func(t *testing.T) {
		cfg := testConfig(nil)
		cfg.Registry.Driver = registry.DriverConsul
		cfg.Connectors.Consul = &connector.ConsulConfig{Address: "consul:8500"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "consul:8500", cfg.Registrar.Address)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, want: "app.name: is required"},
		{name: "missing key", mutate: func(c *Config) { c.KVConfig.Key = "" }, want: "kvconfig.key: is required"},
		{name: "unknown kv driver", mutate: func(c *Config) { c.KVConfig.Driver = "zookeeper" }, want: "kvconfig.driver"},
		{name: "unknown registry driver", mutate: func(c *Config) { c.Registry.Driver = "zookeeper" }, want: `unknown driver "zookeeper"`},
		{name: "kv driver without connector", mutate: func(c *Config) { c.KVConfig.Driver = KVDriverRedis }, want: "requires connectors.redis"},
		{name: "registry driver without connector", mutate: func(c *Config) { c.Registry.Driver = registry.DriverEtcd }, want: "requires connectors.etcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(nil)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, config.IsInvalid(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
app:
  name: tasks
server:
  addr: "127.0.0.1:9000"
  shutdown_timeout: 3s
kvconfig:
  driver: memory
  key: warden/auth
  format: json
registrar:
  tags: [http, v1]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "warden.yaml"), []byte(content), 0o644))

	cfg, err := LoadConfig(context.Background(), &config.Config{Name: "warden", Paths: []string{dir}, EnvPrefix: "WDBOOT"})
	require.NoError(t, err)
	assert.Equal(t, "tasks", cfg.App.Name)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "json", cfg.KVConfig.Format)
	assert.Equal(t, []string{"http", "v1"}, cfg.Registrar.Tags)
	assert.Equal(t, 9000, cfg.Registrar.ServicePort)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConfigRequired)
}

// 认证配置缺失时启动直接失败，不会创建服务器或注册
func TestNew_MissingAuthSettingsFailsFast(t *testing.T) {
	reg := registry.NewMemory()
	app, err := New(context.Background(), testConfig(nil), WithLogger(clog.Discard()), WithRegistry(reg))

	require.Error(t, err)
	assert.Nil(t, app)
	assert.ErrorIs(t, err, kvconfig.ErrConfigNotFound)
	assert.Zero(t, reg.Len())
}

func TestNew_InvalidAuthSettings(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{name: "short secret", doc: `{"secretKey":"short","issuer":"i","audience":"a"}`, want: auth.ErrInvalidPolicy},
		{name: "malformed", doc: `{"secretKey":`, want: kvconfig.ErrConfigParse},
		{name: "empty", doc: ``, want: kvconfig.ErrConfigParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), testConfig(map[string]string{authKey: tt.doc}), WithLogger(clog.Discard()))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApp_StartServeStop(t *testing.T) {
	reg := registry.NewMemory()
	ctx := context.Background()

	app, err := New(ctx, testConfig(map[string]string{authKey: authDoc}),
		WithLogger(clog.Discard()),
		WithRegistry(reg),
		WithIDSource(registrar.NewSequenceSource()),
	)
	require.NoError(t, err)

	app.API().POST("/echo", pipeline.Handle(app.Pipeline(), func(ctx context.Context, req *echoRequest) (echoResponse, error) {
		return echoResponse{Message: req.Message}, nil
	}))

	require.NoError(t, app.Start(ctx))
	base := fmt.Sprintf("http://%s", app.Addr().String())

	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"id": "tasks-1", "state": "registered"}, body["registration"])
	assert.Equal(t, 1, reg.Len())

	assert.Equal(t, http.StatusUnauthorized, post(t, base+"/api/echo", `{"message":"hi"}`, ""))
	assert.Equal(t, http.StatusBadRequest, post(t, base+"/api/echo", `{}`, bearer(t)))
	assert.Equal(t, http.StatusOK, post(t, base+"/api/echo", `{"message":"hi"}`, bearer(t)))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, app.Stop(stopCtx))
	// Stop 只执行一次
	require.NoError(t, app.Stop(stopCtx))

	assert.Zero(t, reg.Len())
	assert.Equal(t, registrar.StateDeregistered, app.Registrar().Handle().State)

	_, err = http.Get(base + "/healthz")
	assert.Error(t, err, "server must be closed after Stop")
}

type unreachableRegistry struct{}

func (unreachableRegistry) Register(context.Context, *registry.ServiceInstance) error {
	return errors.New("dial tcp 10.0.0.1:8500: connect: connection refused")
}

func (unreachableRegistry) Deregister(context.Context, string) error {
	return errors.New("dial tcp 10.0.0.1:8500: connect: connection refused")
}

func (unreachableRegistry) GetService(context.Context, string) ([]*registry.ServiceInstance, error) {
	return nil, registry.ErrServiceNotFound
}

func (unreachableRegistry) Close() error { return nil }

// 注册中心不可达不影响启动，服务照常处理请求
func TestApp_RegistryUnreachableDoesNotAbortStartup(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(map[string]string{authKey: authDoc}),
		WithLogger(clog.Discard()), WithRegistry(unreachableRegistry{}))
	require.NoError(t, err)

	require.NoError(t, app.Start(ctx))
	defer func() { _ = app.Stop(ctx) }()

	status, body := get(t, fmt.Sprintf("http://%s/healthz", app.Addr()))
	assert.Equal(t, http.StatusOK, status)
	registration, ok := body["registration"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unregistered", registration["state"])
	assert.ErrorIs(t, app.Registrar().LastError(), registrar.ErrRegistryCommunication)
}

// 真实 Consul 驱动指向不可达地址：仅供注册中心使用的连接器不中止启动
func TestApp_UnreachableConsulRegistryDoesNotAbortStartup(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(map[string]string{authKey: authDoc})
	cfg.Connectors.Consul = &connector.ConsulConfig{Address: "127.0.0.1:1", Timeout: time.Second}
	cfg.Registry.Driver = registry.DriverConsul

	app, err := New(ctx, cfg, WithLogger(clog.Discard()))
	require.NoError(t, err)

	require.NoError(t, app.Start(ctx))
	defer func() { _ = app.Stop(ctx) }()

	status, body := get(t, fmt.Sprintf("http://%s/healthz", app.Addr()))
	assert.Equal(t, http.StatusOK, status)
	registration, ok := body["registration"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unregistered", registration["state"])
	assert.Equal(t, map[string]any{"consul": false}, body["connectors"])
	assert.ErrorIs(t, app.Registrar().LastError(), registrar.ErrRegistryCommunication)
}

// KV 驱动使用的连接器不可达时启动失败
func TestNew_UnreachableKVConnectorFailsFast(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Connectors.Consul = &connector.ConsulConfig{Address: "127.0.0.1:1", Timeout: time.Second}
	cfg.KVConfig.Driver = KVDriverConsul

	app, err := New(context.Background(), cfg, WithLogger(clog.Discard()), WithRegistry(registry.NewMemory()))
	assert.Nil(t, app)
	assert.ErrorIs(t, err, connector.ErrConnection)
}

func TestApp_RunStopsWhenContextCanceled(t *testing.T) {
	reg := registry.NewMemory()
	app, err := New(context.Background(), testConfig(map[string]string{authKey: authDoc}),
		WithLogger(clog.Discard()), WithRegistry(reg))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return reg.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, reg.Len())
}

func TestApp_StartFailsWhenAddressInUse(t *testing.T) {
	ctx := context.Background()
	first, err := New(ctx, testConfig(map[string]string{authKey: authDoc}), WithLogger(clog.Discard()))
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	defer func() { _ = first.Stop(ctx) }()

	cfg := testConfig(map[string]string{authKey: authDoc})
	cfg.Server.Addr = first.Addr().String()
	reg := registry.NewMemory()
	second, err := New(ctx, cfg, WithLogger(clog.Discard()), WithRegistry(reg))
	require.NoError(t, err)

	err = second.Run(ctx)
	require.Error(t, err)
	assert.Zero(t, reg.Len(), "must not register when the listener fails")
}
