package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	// HeaderSize 4 байта длины + 2 байта вида + 1 байт флагов
	HeaderSize = 7
	// MaxFrameSize предел тела кадра
	MaxFrameSize = 1024 * 1024

	flagCompressed byte = 1 << 0
)

var (
	ErrFrameTooLarge = errors.New("protocol: кадр превышает допустимый размер")
	ErrUnknownKind   = errors.New("protocol: неизвестный вид сообщения")
	ErrUnexpected    = errors.New("protocol: неожиданное сообщение")
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// codecs лениво создаёт общие кодеки: EncodeAll/DecodeAll безопасны для параллельного вызова
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Conn читает и пишет кадры протокола поверх потока (TCP или KCP).
// Запись защищена мьютексом, чтение ожидается из одной горутины.
type Conn struct {
	r  *bufio.Reader
	w  io.Writer
	wm sync.Mutex

	// CompressThreshold: тела не меньше этого размера сжимаются zstd; 0 = не сжимать
	CompressThreshold int
}

// NewConn оборачивает поток
func NewConn(rw io.ReadWriter, compressThreshold int) *Conn {
	return &Conn{
		r:                 bufio.NewReader(rw),
		w:                 rw,
		CompressThreshold: compressThreshold,
	}
}

// Peek блокируется до прихода следующего кадра, не потребляя его.
// Нельзя вызывать параллельно с Read.
func (c *Conn) Peek() error {
	_, err := c.r.Peek(1)
	return err
}

// Write сериализует сообщение и отправляет одним кадром
func (c *Conn) Write(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", p.Kind(), err)
	}

	var flags byte
	if c.CompressThreshold > 0 && len(body) >= c.CompressThreshold {
		enc, _, err := codecs()
		if err != nil {
			return fmt.Errorf("zstd недоступен: %w", err)
		}
		body = enc.EncodeAll(body, nil)
		flags |= flagCompressed
	}

	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d байт", ErrFrameTooLarge, len(body))
	}

	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint16(frame[4:6], uint16(p.Kind()))
	frame[6] = flags
	copy(frame[HeaderSize:], body)

	c.wm.Lock()
	defer c.wm.Unlock()
	_, err = c.w.Write(frame)
	return err
}

// Read читает следующий кадр и возвращает сообщение по значению
func (c *Conn) Read() (Payload, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[0:4])
	kind := Kind(binary.BigEndian.Uint16(header[4:6]))
	flags := header[6]

	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d байт", ErrFrameTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("ошибка чтения тела %s: %w", kind, err)
	}

	if flags&flagCompressed != 0 {
		_, dec, err := codecs()
		if err != nil {
			return nil, fmt.Errorf("zstd недоступен: %w", err)
		}
		body, err = dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки %s: %w", kind, err)
		}
	}

	ptr, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, ptr); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", kind, err)
	}
	return deref(ptr), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *PlayerID:
		return *v
	case *LevelLayout:
		return *v
	case *RescuableLayout:
		return *v
	case *HazardLayout:
		return *v
	case *TickEnvelope:
		return *v
	case *FinalScore:
		return *v
	case *Snapshot:
		return *v
	case *Hello:
		return *v
	}
	return p
}

// Expect читает следующее сообщение и проверяет его вид
func Expect[T Payload](c *Conn) (T, error) {
	var zero T
	p, err := c.Read()
	if err != nil {
		return zero, err
	}
	v, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%w: ожидался %s, получен %s", ErrUnexpected, zero.Kind(), p.Kind())
	}
	return v, nil
}
