package registrar

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/lifecycle"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/registry"
)

// fakeRegistry 可注入错误、可阻塞直到 ctx 结束的 Registry
type fakeRegistry struct {
	registerErr     error
	deregisterErr   error
	blockRegister   bool
	blockDeregister bool

	registers   atomic.Int32
	deregisters atomic.Int32

	mu          sync.Mutex
	lastID      string
	hadDeadline bool
}

func (f *fakeRegistry) Register(ctx context.Context, s *registry.ServiceInstance) error {
	f.registers.Add(1)
	f.mu.Lock()
	f.lastID = s.ID
	f.mu.Unlock()
	if f.blockRegister {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.registerErr
}

func (f *fakeRegistry) Deregister(ctx context.Context, id string) error {
	f.deregisters.Add(1)
	f.mu.Lock()
	_, f.hadDeadline = ctx.Deadline()
	f.mu.Unlock()
	if f.blockDeregister {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.deregisterErr
}

func (f *fakeRegistry) GetService(context.Context, string) ([]*registry.ServiceInstance, error) {
	return nil, nil
}

func (f *fakeRegistry) Close() error { return nil }

func testEndpoint() Endpoint {
	return Endpoint{
		Address:        "http://127.0.0.1:8500",
		ServiceName:    "task-service",
		ServiceAddress: "10.0.0.5",
		ServicePort:    8080,
		Tags:           []string{"http", "v1"},
	}
}

func newTestRegistrar(t *testing.T, reg registry.Registry, opts ...Option) *Registrar {
	t.Helper()
	opts = append([]Option{WithIDSource(NewSequenceSource())}, opts...)
	r, err := New(reg, testEndpoint(), opts...)
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testEndpoint())
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	ep := testEndpoint()
	ep.ServiceName = ""
	_, err = New(registry.NewMemory(), ep)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	ep = testEndpoint()
	ep.ServicePort = 65536
	_, err = New(registry.NewMemory(), ep)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestNew_CopiesEndpoint(t *testing.T) {
	ep := testEndpoint()
	r, err := New(registry.NewMemory(), ep)
	require.NoError(t, err)

	ep.Tags[0] = "mutated"
	assert.Equal(t, []string{"http", "v1"}, r.Endpoint().Tags)
}

func TestRegisterDeregister_Idempotent(t *testing.T) {
	reg := registry.NewMemory()
	r := newTestRegistrar(t, reg)
	ctx := context.Background()

	assert.Equal(t, Handle{State: StateUnregistered}, r.Handle())

	h := r.Register(ctx)
	assert.Equal(t, Handle{ID: "task-service-1", State: StateRegistered}, h)

	instances, err := reg.GetService(ctx, "task-service")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "task-service-1", instances[0].ID)
	assert.Equal(t, "10.0.0.5", instances[0].Address)
	assert.Equal(t, 8080, instances[0].Port)
	assert.Equal(t, []string{"http", "v1"}, instances[0].Tags)

	// Registered 状态下再次 Register 是空操作
	assert.Equal(t, h, r.Register(ctx))
	assert.Equal(t, 1, reg.Len())

	h = r.Deregister(ctx)
	assert.Equal(t, StateDeregistered, h.State)
	assert.Equal(t, RegistrationID("task-service-1"), h.ID)
	assert.Equal(t, 0, reg.Len())
	assert.NoError(t, r.LastError())

	// 第二次 Deregister 是空操作，不产生错误
	assert.Equal(t, h, r.Deregister(ctx))
	assert.NoError(t, r.LastError())

	// 状态不可逆
	assert.Equal(t, StateDeregistered, r.Register(ctx).State)
	assert.Equal(t, 0, reg.Len())
}

func TestDeregister_FromUnregisteredIsNoop(t *testing.T) {
	fake := &fakeRegistry{}
	r := newTestRegistrar(t, fake)

	h := r.Deregister(context.Background())
	assert.Equal(t, StateUnregistered, h.State)
	assert.Zero(t, fake.deregisters.Load())
}

func TestRegister_FailureIsSwallowed(t *testing.T) {
	unreachable := errors.New("dial tcp 127.0.0.1:8500: connect: connection refused")
	fake := &fakeRegistry{registerErr: unreachable}

	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "info", Format: "json"}, clog.WithOutput(&buf))
	require.NoError(t, err)

	r := newTestRegistrar(t, fake, WithLogger(logger))
	h := r.Register(context.Background())

	assert.Equal(t, StateUnregistered, h.State)
	assert.Equal(t, RegistrationID("task-service-1"), h.ID)
	assert.ErrorIs(t, r.LastError(), ErrRegistryCommunication)
	assert.ErrorIs(t, r.LastError(), unreachable)
	assert.Contains(t, buf.String(), "error registering with service registry")
	assert.Contains(t, buf.String(), `"registration_id":"task-service-1"`)

	// 注册中心明确拒绝，Deregister 不访问注册中心
	assert.Equal(t, StateUnregistered, r.Deregister(context.Background()).State)
	assert.Zero(t, fake.deregisters.Load())
}

func TestRegister_DefaultTimeoutWithoutDeadline(t *testing.T) {
	fake := &fakeRegistry{blockRegister: true}
	r := newTestRegistrar(t, fake, WithRegisterTimeout(50*time.Millisecond))

	start := time.Now()
	h := r.Register(context.Background())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Handle{ID: "task-service-1", State: StateUnregistered}, h)
	assert.ErrorIs(t, r.LastError(), ErrRegistryCommunication)
	assert.ErrorIs(t, r.LastError(), context.DeadlineExceeded)
}

// 注册超时后结果未知，Deregister 仍按保留的标识清理一次
func TestDeregister_CleansUpAfterUncertainRegister(t *testing.T) {
	fake := &fakeRegistry{blockRegister: true}
	r := newTestRegistrar(t, fake, WithRegisterTimeout(20*time.Millisecond))
	ctx := context.Background()

	r.Register(ctx)
	h := r.Deregister(ctx)
	assert.Equal(t, Handle{ID: "task-service-1", State: StateDeregistered}, h)
	assert.EqualValues(t, 1, fake.deregisters.Load())
	assert.NoError(t, r.LastError())

	r.Deregister(ctx)
	assert.EqualValues(t, 1, fake.deregisters.Load())
	assert.Equal(t, StateDeregistered, r.Register(ctx).State)
	assert.EqualValues(t, 1, fake.registers.Load())
}

func TestDeregister_FailureStillTransitions(t *testing.T) {
	fake := &fakeRegistry{deregisterErr: errors.New("500 internal error")}
	r := newTestRegistrar(t, fake)
	ctx := context.Background()

	r.Register(ctx)
	h := r.Deregister(ctx)
	assert.Equal(t, StateDeregistered, h.State)
	assert.ErrorIs(t, r.LastError(), ErrRegistryCommunication)

	r.Deregister(ctx)
	assert.EqualValues(t, 1, fake.deregisters.Load())
}

func TestDeregister_HonorsCallerDeadline(t *testing.T) {
	fake := &fakeRegistry{blockDeregister: true}
	r := newTestRegistrar(t, fake, WithDeregisterTimeout(time.Hour))
	r.Register(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	h := r.Deregister(ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateDeregistered, h.State)
	assert.ErrorIs(t, r.LastError(), context.DeadlineExceeded)
}

func TestDeregister_DefaultTimeoutWithoutDeadline(t *testing.T) {
	fake := &fakeRegistry{blockDeregister: true}
	r := newTestRegistrar(t, fake, WithDeregisterTimeout(50*time.Millisecond))
	r.Register(context.Background())

	start := time.Now()
	h := r.Deregister(context.Background())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateDeregistered, h.State)

	fake.mu.Lock()
	assert.True(t, fake.hadDeadline)
	fake.mu.Unlock()
	assert.ErrorIs(t, r.LastError(), context.DeadlineExceeded)
}

func TestDeregister_CanceledContextAbandons(t *testing.T) {
	fake := &fakeRegistry{blockDeregister: true}
	r := newTestRegistrar(t, fake)
	r.Register(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := r.Deregister(ctx)
	assert.Equal(t, StateDeregistered, h.State)
	assert.ErrorIs(t, r.LastError(), context.Canceled)
	assert.EqualValues(t, 1, fake.deregisters.Load())
}

func TestUUIDSource_DistinctUnderConcurrency(t *testing.T) {
	reg := registry.NewMemory()
	const instances = 16

	handles := make([]Handle, instances)
	var wg sync.WaitGroup
	for i := 0; i < instances; i++ {
		r, err := New(reg, testEndpoint())
		require.NoError(t, err)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = r.Register(context.Background())
		}(i)
	}
	wg.Wait()

	seen := make(map[RegistrationID]struct{}, instances)
	for _, h := range handles {
		require.Equal(t, StateRegistered, h.State)
		assert.Regexp(t, `^task-service-[0-9a-f-]{36}$`, string(h.ID))
		seen[h.ID] = struct{}{}
	}
	assert.Len(t, seen, instances)
	assert.Equal(t, instances, reg.Len())
}

func TestRegistrar_ConcurrentCallsStayMonotonic(t *testing.T) {
	fake := &fakeRegistry{}
	r := newTestRegistrar(t, fake)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); r.Register(ctx) }()
		go func() { defer wg.Done(); r.Deregister(ctx) }()
	}
	wg.Wait()

	assert.LessOrEqual(t, fake.registers.Load(), int32(1))
	assert.LessOrEqual(t, fake.deregisters.Load(), int32(1))
	assert.LessOrEqual(t, fake.deregisters.Load(), fake.registers.Load())
}

func TestSequenceSource(t *testing.T) {
	s := NewSequenceSource()
	assert.Equal(t, RegistrationID("a-1"), s.NewID("a"))
	assert.Equal(t, RegistrationID("b-2"), s.NewID("b"))

	var src IDSource = IDSourceFunc(func(name string) RegistrationID { return RegistrationID(name + "-fixed") })
	assert.Equal(t, RegistrationID("a-fixed"), src.NewID("a"))
}

func TestRegistrar_Lifecycle(t *testing.T) {
	fake := &fakeRegistry{registerErr: errors.New("unreachable")}
	r := newTestRegistrar(t, fake)

	m := lifecycle.NewManager()
	m.Register("registrar", r)

	// 注册失败不会中止启动
	require.NoError(t, m.StartAll(context.Background()))
	assert.Equal(t, StateUnregistered, r.Handle().State)
	require.NoError(t, m.StopAll(context.Background()))
	assert.Equal(t, lifecycle.PhaseRegistration, r.Phase())
}

func TestRegistrar_Metrics(t *testing.T) {
	meter, err := metrics.New(&metrics.Config{Enabled: true})
	require.NoError(t, err)
	defer func() { _ = meter.Shutdown(context.Background()) }()

	r := newTestRegistrar(t, registry.NewMemory(), WithMeter(meter))
	r.Register(context.Background())
	r.Deregister(context.Background())

	assert.HTTPBodyContains(t, meter.Handler().ServeHTTP, "GET", "/metrics", nil, `operation="register"`)
	assert.HTTPBodyContains(t, meter.Handler().ServeHTTP, "GET", "/metrics", nil, `operation="deregister"`)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unregistered", StateUnregistered.String())
	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "deregistered", StateDeregistered.String())
	assert.Equal(t, "unknown", State(42).String())
}
