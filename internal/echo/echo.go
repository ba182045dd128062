// Package echo implements the framed timing-echo protocol served on both the
// plaintext and TLS echo listeners.
//
// Client to server:
//
//	[len: u32 LE][payload: len bytes]
//
// Server to client:
//
//	[server_recv_ns: i64 LE][server_send_ns: i64 LE][payload: len bytes]
//
// A length of zero asks the server to close the connection. Frames on one
// connection are handled strictly in order.
package echo

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/hermit/internal/clock"
)

const (
	// HeaderSize is the size of the client frame length prefix.
	HeaderSize = 4
	// ReplyHeaderSize is the size of the two timestamps preceding an echo.
	ReplyHeaderSize = 16
)

var (
	// ErrFrameTooLarge is returned when a frame exceeds the configured limit.
	ErrFrameTooLarge = errors.New("echo: frame exceeds maximum payload size")
	// ErrEmptyFrame is returned by WriteFrame for an empty payload, which
	// would be read as the close sentinel.
	ErrEmptyFrame = errors.New("echo: empty payload is the close sentinel")
)

// Handler serves the echo protocol on one stream at a time. A Handler holds
// no per-connection state and may serve many connections concurrently.
type Handler struct {
	Clock *clock.Clock
	// MaxPayload rejects frames longer than this many bytes. Zero means no
	// limit beyond the u32 length field.
	MaxPayload uint32
	// IdleTimeout bounds each read when the stream supports read deadlines.
	// Zero blocks indefinitely.
	IdleTimeout time.Duration
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Serve runs the echo loop until the peer closes cleanly, sends the close
// sentinel, or an I/O error occurs. A clean close returns nil. A stream that
// ends partway through a frame returns an error wrapping
// io.ErrUnexpectedEOF.
func (h *Handler) Serve(stream io.ReadWriter) error {
	var (
		header  [HeaderSize]byte
		stamps  [ReplyHeaderSize]byte
		payload []byte
	)
	dl, _ := stream.(readDeadliner)
	w := bufio.NewWriter(stream)

	for {
		if err := h.extendDeadline(dl); err != nil {
			return err
		}
		if _, err := io.ReadFull(stream, header[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "read frame header")
		}
		recvNs := h.Clock.NowNs()

		n := binary.LittleEndian.Uint32(header[:])
		if n == 0 {
			return nil
		}
		if h.MaxPayload > 0 && n > h.MaxPayload {
			return errors.Wrapf(ErrFrameTooLarge, "%d > %d bytes", n, h.MaxPayload)
		}

		if cap(payload) < int(n) {
			payload = make([]byte, n)
		}
		payload = payload[:n]

		if err := h.extendDeadline(dl); err != nil {
			return err
		}
		if _, err := io.ReadFull(stream, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return errors.Wrap(err, "read frame payload")
		}

		sendNs := h.Clock.NowNs()
		binary.LittleEndian.PutUint64(stamps[0:8], uint64(recvNs))
		binary.LittleEndian.PutUint64(stamps[8:16], uint64(sendNs))
		if _, err := w.Write(stamps[:]); err != nil {
			return errors.Wrap(err, "write timestamps")
		}
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(err, "write payload")
		}
		if err := w.Flush(); err != nil {
			return errors.Wrap(err, "flush reply")
		}
	}
}

func (h *Handler) extendDeadline(dl readDeadliner) error {
	if dl == nil || h.IdleTimeout <= 0 {
		return nil
	}
	return errors.Wrap(dl.SetReadDeadline(time.Now().Add(h.IdleTimeout)), "set read deadline")
}

// Reply is the server's answer to one frame.
type Reply struct {
	RecvNs  int64
	SendNs  int64
	Payload []byte
}

// ServerProcessingNs is the time the server spent between knowing the
// frame length and starting its reply.
func (r Reply) ServerProcessingNs() int64 {
	return r.SendNs - r.RecvNs
}

// WriteFrame sends payload as a single frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return ErrFrameTooLarge
	}

	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	_, err := w.Write(frame)
	return errors.Wrap(err, "write frame")
}

// WriteClose sends the zero-length close sentinel.
func WriteClose(w io.Writer) error {
	var header [HeaderSize]byte
	_, err := w.Write(header[:])
	return errors.Wrap(err, "write close")
}

// ReadReply reads the reply to a frame whose payload was n bytes long.
func ReadReply(r io.Reader, n int) (Reply, error) {
	buf := make([]byte, ReplyHeaderSize+n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Reply{}, errors.Wrap(err, "read reply")
	}
	return Reply{
		RecvNs:  int64(binary.LittleEndian.Uint64(buf[0:8])),
		SendNs:  int64(binary.LittleEndian.Uint64(buf[8:16])),
		Payload: buf[ReplyHeaderSize:],
	}, nil
}
