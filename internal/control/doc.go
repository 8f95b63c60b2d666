// Package control implements the daemon's connectionless command channel.
//
// Clients send one plain-text command per datagram to a unixgram socket
// (toggle, end, lock, tag <value>, time <add|sub> <seconds>, exit). Commands
// are decoded once at the boundary into a Command value; nothing downstream
// dispatches on strings.
//
// Listen performs the startup handshake: an endpoint that still answers is
// sent "exit" and given a bounded number of backoff intervals to disappear,
// failing with ErrEndpointBusy otherwise, while an endpoint nobody answers on
// is removed as stale. A Listener removes its socket on Close only while the
// file is still the one it bound.
package control
