package control

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNoDaemon is returned by Send when nothing is listening on the endpoint.
var ErrNoDaemon = errors.New("no daemon listening")

const sendTimeout = 2 * time.Second

// Send delivers cmd as a single datagram to the daemon bound at path.
func Send(path string, cmd Command) error {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		if isNotListening(err) {
			return fmt.Errorf("%w at %s", ErrNoDaemon, path)
		}
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return fmt.Errorf("set control write deadline: %w", err)
	}
	if _, err := conn.Write([]byte(cmd.String())); err != nil {
		if isNotListening(err) {
			return fmt.Errorf("%w at %s", ErrNoDaemon, path)
		}
		return fmt.Errorf("send %s: %w", cmd.Kind, err)
	}
	return nil
}

func isNotListening(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ECONNREFUSED)
}
