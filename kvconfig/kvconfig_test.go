package kvconfig

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

type jwtSettings struct {
	SecretKey string  `json:"secretKey" yaml:"secretKey"`
	Issuer    string  `json:"issuer" yaml:"issuer"`
	Lifetime  float64 `json:"lifetime" yaml:"lifetime"`
}

// failingStore 模拟存储不可达
type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) ([]byte, error) { return nil, s.err }
func (failingStore) Name() string                                  { return "failing" }

func newLoader(t *testing.T, data map[string][]byte, opts ...Option) *Loader {
	t.Helper()
	loader, err := New(NewMemoryStore(data), opts...)
	require.NoError(t, err)
	return loader
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(NewMemoryStore(nil), WithFormat("toml"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(NewMemoryStore(nil), WithFormat("YAML"))
	assert.NoError(t, err)
}

func TestFetch_JSON(t *testing.T) {
	loader := newLoader(t, map[string][]byte{
		// 字段名大小写不敏感
		"auth/jwt": []byte(`{"SecretKey":"s3cr3t","ISSUER":"warden","lifetime":15.5}`),
	})

	var got jwtSettings
	require.NoError(t, loader.Fetch(context.Background(), "auth/jwt", &got))
	assert.Equal(t, jwtSettings{SecretKey: "s3cr3t", Issuer: "warden", Lifetime: 15.5}, got)
}

func TestFetch_YAML(t *testing.T) {
	loader := newLoader(t, map[string][]byte{
		"auth/jwt": []byte("secretKey: s3cr3t\nissuer: warden\nlifetime: 30\n"),
	}, WithFormat(FormatYAML))

	got, err := FetchAs[jwtSettings](context.Background(), loader, "auth/jwt")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got.SecretKey)
	assert.Equal(t, 30.0, got.Lifetime)
}

func TestFetch_Msgpack(t *testing.T) {
	blob, err := msgpack.Marshal(map[string]any{"secretKey": "s3cr3t", "issuer": "warden", "lifetime": 12.5})
	require.NoError(t, err)
	loader := newLoader(t, map[string][]byte{"auth/jwt": blob}, WithFormat(FormatMsgpack))

	got, err := FetchAs[jwtSettings](context.Background(), loader, "auth/jwt")
	require.NoError(t, err)
	assert.Equal(t, jwtSettings{SecretKey: "s3cr3t", Issuer: "warden", Lifetime: 12.5}, *got)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string][]byte
		format  string
		key     string
		wantErr error
	}{
		{name: "absent key", key: "auth/jwt", wantErr: ErrConfigNotFound},
		{name: "empty value", data: map[string][]byte{"k": {}}, key: "k", wantErr: ErrConfigParse},
		{name: "whitespace value", data: map[string][]byte{"k": []byte("  \n")}, key: "k", wantErr: ErrConfigParse},
		{name: "json null", data: map[string][]byte{"k": []byte("null")}, key: "k", wantErr: ErrConfigParse},
		{name: "malformed json", data: map[string][]byte{"k": []byte(`{"issuer":`)}, key: "k", wantErr: ErrConfigParse},
		{name: "wrong shape", data: map[string][]byte{"k": []byte(`[1,2,3]`)}, key: "k", wantErr: ErrConfigParse},
		{name: "wrong field type", data: map[string][]byte{"k": []byte(`{"lifetime":"soon"}`)}, key: "k", wantErr: ErrConfigParse},
		{name: "yaml null", data: map[string][]byte{"k": []byte("~\n")}, format: FormatYAML, key: "k", wantErr: ErrConfigParse},
		{name: "malformed yaml", data: map[string][]byte{"k": []byte("issuer: [x")}, format: FormatYAML, key: "k", wantErr: ErrConfigParse},
		{name: "msgpack nil", data: map[string][]byte{"k": {0xc0}}, format: FormatMsgpack, key: "k", wantErr: ErrConfigParse},
		{name: "malformed msgpack", data: map[string][]byte{"k": {0x81}}, format: FormatMsgpack, key: "k", wantErr: ErrConfigParse},
		{name: "blank key", key: "  ", wantErr: ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newLoader(t, tt.data, WithFormat(tt.format))
			var got jwtSettings
			err := loader.Fetch(context.Background(), tt.key, &got)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetch_RequiresPointer(t *testing.T) {
	loader := newLoader(t, map[string][]byte{"k": []byte(`{}`)})

	var got jwtSettings
	assert.ErrorIs(t, loader.Fetch(context.Background(), "k", got), ErrInvalidArgument)
	assert.ErrorIs(t, loader.Fetch(context.Background(), "k", (*jwtSettings)(nil)), ErrInvalidArgument)
}

func TestFetch_StoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	loader, err := New(failingStore{err: storeErr})
	require.NoError(t, err)

	var got jwtSettings
	err = loader.Fetch(context.Background(), "auth/jwt", &got)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrConfigNotFound)
	assert.NotErrorIs(t, err, ErrConfigParse)
}

func TestFetch_CanceledContext(t *testing.T) {
	loader := newLoader(t, map[string][]byte{"k": []byte(`{}`)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got jwtSettings
	assert.ErrorIs(t, loader.Fetch(ctx, "k", &got), context.Canceled)
}

func TestFetch_NeverLogsPayload(t *testing.T) {
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "debug", Format: "json"}, clog.WithOutput(&buf))
	require.NoError(t, err)

	loader := newLoader(t, map[string][]byte{
		"good": []byte(`{"secretKey":"top-secret-value"}`),
		"bad":  []byte(`{"secretKey":"top-secret-value",`),
	}, WithLogger(logger))

	var got jwtSettings
	require.NoError(t, loader.Fetch(context.Background(), "good", &got))
	require.ErrorIs(t, loader.Fetch(context.Background(), "bad", &got), ErrConfigParse)

	out := buf.String()
	assert.Contains(t, out, `"key":"good"`)
	assert.Contains(t, out, `"store":"memory"`)
	assert.NotContains(t, out, "top-secret-value")
}

func TestFetch_Metrics(t *testing.T) {
	meter, err := metrics.New(&metrics.Config{Enabled: true})
	require.NoError(t, err)
	defer func() { _ = meter.Shutdown(context.Background()) }()

	loader := newLoader(t, map[string][]byte{"k": []byte(`{}`)}, WithMeter(meter))
	var got jwtSettings
	_ = loader.Fetch(context.Background(), "k", &got)
	_ = loader.Fetch(context.Background(), "missing", &got)

	assert.HTTPBodyContains(t, meter.Handler().ServeHTTP, "GET", "/metrics", nil, `status="success"`)
	assert.HTTPBodyContains(t, meter.Handler().ServeHTTP, "GET", "/metrics", nil, `status="not_found"`)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	src := []byte("v1")
	store := NewMemoryStore(map[string][]byte{"k": src})
	src[0] = 'x'

	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	store.Set("k", []byte("v2"))
	got, err = store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestDriverStores_RequireConnector(t *testing.T) {
	_, err := NewEtcdStore(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewConsulStore(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRedisStore(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
