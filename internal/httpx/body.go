package httpx

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// ErrBodyTimeout is returned when the client did not finish sending the body
// before the deadline.
var ErrBodyTimeout = errors.New("request body timeout")

// Deadliner is the part of net.Conn used to bound body reads.
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadBody buffers r completely. When conn is set, a single absolute read
// deadline of now+timeout covers the whole body, so a client trickling bytes
// cannot extend it. The deadline is cleared before returning.
func ReadBody(r io.Reader, conn Deadliner, timeout time.Duration) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	if conn != nil && timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck
	}

	body, err := io.ReadAll(r)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrBodyTimeout
		}
		return nil, err
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
