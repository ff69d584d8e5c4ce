package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/session"
)

// ServerOptions параметры игрового сервера
type ServerOptions struct {
	Transport         string        // tcp | kcp
	Addr              string        // host:port
	ReadTimeout       time.Duration // 0 = без таймаута чтения
	DiagnosticsEvery  time.Duration // период диагностического лога соединения
	CompressThreshold int           // кадры от этого размера сжимаются zstd
	Metrics           *Metrics      // может быть nil
}

// GameServer принимает соединения и запускает по воркеру на каждое.
// Всё состояние игры принадлежит координатору сессии.
type GameServer struct {
	opts        ServerOptions
	listener    net.Listener
	coord       *session.Coordinator
	connections map[uint64]*GameConnection
	nextConnID  uint64
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *logging.Logger
}

// NewGameServer открывает слушатель. Соединения принимаются после Start.
func NewGameServer(opts ServerOptions, coord *session.Coordinator) (*GameServer, error) {
	if opts.DiagnosticsEvery <= 0 {
		opts.DiagnosticsEvery = 5 * time.Second
	}

	listener, err := Listen(opts.Transport, opts.Addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &GameServer{
		opts:        opts,
		listener:    listener,
		coord:       coord,
		connections: make(map[uint64]*GameConnection),
		nextConnID:  1,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logging.GetNetworkLogger(),
	}, nil
}

// Addr фактический адрес слушателя
func (s *GameServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Start запускает приём соединений
func (s *GameServer) Start() {
	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Info("🚀 Игровой сервер (%s) слушает %s", s.transport(), s.listener.Addr())
}

// Stop закрывает слушатель и все соединения и ждёт воркеры
func (s *GameServer) Stop() {
	s.cancel()
	s.listener.Close()

	s.mu.Lock()
	for _, conn := range s.connections {
		conn.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("🛑 Игровой сервер остановлен")
}

// ConnectionCount число открытых соединений
func (s *GameServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *GameServer) transport() string {
	if s.opts.Transport == "" {
		return TransportTCP
	}
	return s.opts.Transport
}

// acceptLoop принимает новые соединения
func (s *GameServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Ошибка принятия соединения: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.mu.Lock()
		connID := s.nextConnID
		s.nextConnID++
		gc := newGameConnection(connID, conn, s)
		s.connections[connID] = gc
		s.mu.Unlock()

		s.opts.Metrics.connOpened()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			gc.handle(s.ctx)
		}()
	}
}

func (s *GameServer) remove(id uint64) {
	s.mu.Lock()
	delete(s.connections, id)
	s.mu.Unlock()
	s.opts.Metrics.connClosed()
}
