package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/xtaci/kcp-go/v5"
)

// Транспорты игрового соединения
const (
	TransportTCP = "tcp"
	TransportKCP = "kcp"
)

// tuneKCP настраивает KCP параметры для игрового трафика
func tuneKCP(conn *kcp.UDPSession) {
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	conn.SetWindowSize(512, 512) // Увеличиваем окно для пропускной способности
	conn.SetMtu(1400)            // Стандартный MTU для интернета
}

// kcpListener выдаёт уже настроенные KCP-сессии
type kcpListener struct {
	*kcp.Listener
}

func (l kcpListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneKCP(conn)
	return conn, nil
}

// Listen открывает слушатель для tcp или kcp
func Listen(transport, addr string) (net.Listener, error) {
	switch transport {
	case "", TransportTCP:
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return l, nil
	case TransportKCP:
		l, err := kcp.ListenWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return kcpListener{l}, nil
	default:
		return nil, fmt.Errorf("неизвестный транспорт %q", transport)
	}
}

// Dial подключается к серверу по tcp или kcp
func Dial(ctx context.Context, transport, addr string) (net.Conn, error) {
	switch transport {
	case "", TransportTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return conn, nil
	case TransportKCP:
		conn, err := kcp.DialWithOptions(addr, nil, 10, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		tuneKCP(conn)
		if deadline, ok := ctx.Deadline(); ok {
			conn.SetDeadline(deadline)
			defer conn.SetDeadline(time.Time{})
		}
		// сервер узнаёт о сессии только по первой датаграмме клиента
		if err := protocol.NewConn(conn, 0).Write(protocol.Hello{}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("hello to %s: %w", addr, err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("неизвестный транспорт %q", transport)
	}
}
