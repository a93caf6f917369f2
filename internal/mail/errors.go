package mail

import "errors"

// Error classes for the SMTP state machine. Every failure the client returns
// wraps exactly one of these, so the dispatcher can classify outcomes with
// errors.Is without parsing strings.
var (
	// ErrConnection covers dial failures: DNS, refused, unreachable, and a
	// failed implicit-TLS handshake on connect.
	ErrConnection = errors.New("smtp: connection failed")

	// ErrProtocol covers unparsable or out-of-sequence server replies and a
	// 4xx/5xx greeting.
	ErrProtocol = errors.New("smtp: protocol error")

	// ErrTLS covers a rejected STARTTLS command or a failed handshake on the
	// opportunistic upgrade path.
	ErrTLS = errors.New("smtp: tls upgrade failed")

	// ErrAuth covers any non-2xx/3xx reply during the AUTH LOGIN exchange.
	ErrAuth = errors.New("smtp: authentication failed")

	// ErrDelivery covers envelope and data-phase rejections, including the
	// case where every recipient was refused.
	ErrDelivery = errors.New("smtp: delivery failed")

	// ErrTimeout covers any step exceeding its read/write deadline.
	ErrTimeout = errors.New("smtp: timeout")

	// ErrClientReused is returned when Send is called twice on one client.
	// A client owns exactly one connection lifecycle.
	ErrClientReused = errors.New("smtp: client already used")
)
