package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/lifecycle"
	"github.com/ceyewan/warden/xerrors"
)

// httpServer 把 http.Server 适配为 lifecycle.Lifecycle
type httpServer struct {
	srv    *http.Server
	logger clog.Logger

	mu   sync.Mutex
	addr net.Addr
	errc chan error
}

var _ lifecycle.Lifecycle = (*httpServer)(nil)

func newHTTPServer(cfg ServerConfig, handler http.Handler, logger clog.Logger) *httpServer {
	return &httpServer{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		logger: logger,
		errc:   make(chan error, 1),
	}
}

// Start 同步绑定端口，随后在后台处理请求
func (s *httpServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen on %s", s.srv.Addr)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("http server listening", clog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", clog.Error(err))
			s.errc <- err
		}
	}()
	return nil
}

// Stop 停止接收新连接并等待进行中的请求完成，受 ctx 约束
func (s *httpServer) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return xerrors.Wrap(err, "shutdown http server")
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *httpServer) Phase() int {
	return lifecycle.PhaseServer
}

// Addr 实际监听地址，Start 之前为 nil
func (s *httpServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Err 服务异常退出时收到错误
func (s *httpServer) Err() <-chan error {
	return s.errc
}
