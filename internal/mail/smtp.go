// Package mail implements the SMTP wire protocol directly on a socket and
// the MIME rendering of report messages. No pre-built mail library is used:
// tenants bring arbitrary SMTP servers and the dispatcher needs exact control
// over every protocol step, its timeout, and its error class.
package mail

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/models"
)

const defaultHelloName = "stockwatch"

// Config holds everything one send needs. Credentials come from the tenant
// row; timeouts come from service configuration.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption models.Encryption

	// Timeout bounds every individual read/write on the socket.
	Timeout time.Duration

	// HelloName is the client identity sent with EHLO.
	HelloName string

	// TLSConfig overrides the TLS client configuration. Test doubles only:
	// the default path always verifies the server certificate against Host.
	TLSConfig *tls.Config
}

// SendResult reports which recipients the server accepted and which it
// rejected. A send with at least one accepted recipient counts as delivered.
type SendResult struct {
	Accepted []string
	Rejected []string
}

// Client drives one SMTP session: connect, greeting, EHLO, optional STARTTLS,
// AUTH LOGIN, envelope, DATA, QUIT. One message send per instance; the
// protocol state lives on the struct and is not safe to reuse or share.
type Client struct {
	cfg  Config
	log  *logger.Logger
	conn net.Conn
	r    *bufio.Reader
	used bool
}

// NewClient creates a single-use SMTP client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HelloName == "" {
		cfg.HelloName = defaultHelloName
	}
	return &Client{cfg: cfg, log: log}
}

// Send delivers one message to the given recipients. The connection is
// closed before returning regardless of outcome.
func (c *Client) Send(ctx context.Context, from string, to []string, msg []byte) (*SendResult, error) {
	if c.used {
		return nil, ErrClientReused
	}
	c.used = true

	if len(to) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrDelivery)
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	defer c.quit()

	if err := c.handshake(ctx); err != nil {
		return nil, err
	}

	result, err := c.envelope(from, to)
	if err != nil {
		return nil, err
	}

	if err := c.data(msg); err != nil {
		return nil, err
	}

	return result, nil
}

// Verify runs the session up to and including authentication, then quits.
// Used by the smtp-check tool to validate tenant credentials without
// sending a message.
func (c *Client) Verify(ctx context.Context) error {
	if c.used {
		return ErrClientReused
	}
	c.used = true

	if err := c.connect(ctx); err != nil {
		return err
	}
	defer c.quit()

	return c.handshake(ctx)
}

// connect opens the socket and, for implicit TLS, performs the handshake
// before any protocol byte is exchanged.
func (c *Client) connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	d := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: dial %s: %v", ErrTimeout, addr, err)
		}
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}

	if c.cfg.Encryption == models.EncryptionSSL {
		tlsConn := tls.Client(conn, c.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("%w: implicit tls handshake: %v", ErrConnection, err)
		}
		conn = tlsConn
	}

	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

// handshake drains the greeting, announces the client, upgrades the channel
// when configured, and authenticates.
func (c *Client) handshake(ctx context.Context) error {
	// greeting
	code, text, err := c.readReply()
	if err != nil {
		return err
	}
	if code >= 400 {
		return fmt.Errorf("%w: greeting rejected: %d %s", ErrProtocol, code, text)
	}

	if err := c.ehlo(); err != nil {
		return err
	}

	if c.cfg.Encryption == models.EncryptionSTARTTLS {
		if err := c.starttls(ctx); err != nil {
			return err
		}
	}

	if c.cfg.Username != "" {
		if err := c.auth(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) ehlo() error {
	code, text, err := c.cmd("EHLO " + c.cfg.HelloName)
	if err != nil {
		return err
	}
	if code != 250 {
		return fmt.Errorf("%w: EHLO rejected: %d %s", ErrProtocol, code, text)
	}
	return nil
}

// starttls upgrades the cleartext connection and re-issues EHLO: servers
// discard the pre-upgrade capability state after the handshake.
func (c *Client) starttls(ctx context.Context) error {
	code, text, err := c.cmd("STARTTLS")
	if err != nil {
		return err
	}
	if code != 220 {
		return fmt.Errorf("%w: STARTTLS rejected: %d %s", ErrTLS, code, text)
	}

	tlsConn := tls.Client(c.conn, c.tlsConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("%w: handshake: %v", ErrTLS, err)
	}
	c.conn = tlsConn
	c.r = bufio.NewReader(tlsConn)

	return c.ehlo()
}

// auth performs the LOGIN exchange: command, base64 username, base64
// password, each answered by the server.
func (c *Client) auth() error {
	steps := []struct {
		line string
		want int
	}{
		{"AUTH LOGIN", 334},
		{base64.StdEncoding.EncodeToString([]byte(c.cfg.Username)), 334},
		{base64.StdEncoding.EncodeToString([]byte(c.cfg.Password)), 235},
	}

	for _, step := range steps {
		code, text, err := c.cmd(step.line)
		if err != nil {
			return err
		}
		if code >= 400 {
			return fmt.Errorf("%w: %d %s", ErrAuth, code, text)
		}
		if code != step.want {
			return fmt.Errorf("%w: unexpected reply %d %s", ErrAuth, code, text)
		}
	}
	return nil
}

// envelope declares the sender and the recipients. A rejected recipient is
// recorded without aborting the send; only an empty accepted set fails.
func (c *Client) envelope(from string, to []string) (*SendResult, error) {
	code, text, err := c.cmd("MAIL FROM:<" + from + ">")
	if err != nil {
		return nil, err
	}
	if code != 250 {
		return nil, fmt.Errorf("%w: MAIL FROM rejected: %d %s", ErrDelivery, code, text)
	}

	result := &SendResult{}
	for _, rcpt := range to {
		code, text, err := c.cmd("RCPT TO:<" + rcpt + ">")
		if err != nil {
			return nil, err
		}
		if code == 250 || code == 251 {
			result.Accepted = append(result.Accepted, rcpt)
			continue
		}
		result.Rejected = append(result.Rejected, fmt.Sprintf("%s (%d %s)", rcpt, code, text))
		c.log.Warn().Str("rcpt", rcpt).Int("code", code).Msg("recipient rejected")
	}

	if len(result.Accepted) == 0 {
		return nil, fmt.Errorf("%w: all recipients rejected: %s", ErrDelivery, strings.Join(result.Rejected, "; "))
	}
	return result, nil
}

// data streams the message body, dot-stuffed and terminated by a lone dot.
func (c *Client) data(msg []byte) error {
	code, text, err := c.cmd("DATA")
	if err != nil {
		return err
	}
	if code != 354 {
		return fmt.Errorf("%w: DATA rejected: %d %s", ErrDelivery, code, text)
	}

	if err := c.write(dotStuff(msg)); err != nil {
		return err
	}
	if err := c.write([]byte(".\r\n")); err != nil {
		return err
	}

	code, text, err = c.readReply()
	if err != nil {
		return err
	}
	if code != 250 {
		return fmt.Errorf("%w: message rejected: %d %s", ErrDelivery, code, text)
	}
	return nil
}

// quit terminates the session. Best effort: failures here are logged, the
// socket is closed either way.
func (c *Client) quit() {
	if c.conn == nil {
		return
	}
	if err := c.write([]byte("QUIT\r\n")); err == nil {
		_, _, _ = c.readReply()
	} else {
		c.log.Debug().Err(err).Msg("quit write failed")
	}
	c.conn.Close()
	c.conn = nil
}

// cmd writes one command line and reads the full reply.
func (c *Client) cmd(line string) (int, string, error) {
	if err := c.write([]byte(line + "\r\n")); err != nil {
		return 0, "", err
	}
	return c.readReply()
}

func (c *Client) write(p []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %v", ErrConnection, err)
	}
	if _, err := c.conn.Write(p); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: write: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	return nil
}

// readReply reads a complete, possibly multi-line server reply. Every line
// carries a 3-digit code; a '-' in the fourth column marks a continuation.
// The reply must be fully drained before the next command, otherwise the
// session desynchronizes.
func (c *Client) readReply() (int, string, error) {
	var code int
	var texts []string

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
			return 0, "", fmt.Errorf("%w: set deadline: %v", ErrConnection, err)
		}

		line, err := c.r.ReadString('\n')
		if err != nil {
			if isTimeout(err) {
				return 0, "", fmt.Errorf("%w: read reply: %v", ErrTimeout, err)
			}
			return 0, "", fmt.Errorf("%w: read reply: %v", ErrConnection, err)
		}

		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", fmt.Errorf("%w: short reply line %q", ErrProtocol, line)
		}

		lineCode, err := strconv.Atoi(line[:3])
		if err != nil {
			return 0, "", fmt.Errorf("%w: malformed reply line %q", ErrProtocol, line)
		}
		if code != 0 && lineCode != code {
			return 0, "", fmt.Errorf("%w: inconsistent reply codes %d and %d", ErrProtocol, code, lineCode)
		}
		code = lineCode

		if len(line) > 4 {
			texts = append(texts, line[4:])
		}

		// continuation marker: "250-..." keeps the reply open, "250 ..." or
		// a bare "250" closes it
		if len(line) > 3 && line[3] == '-' {
			continue
		}
		return code, strings.Join(texts, " / "), nil
	}
}

func (c *Client) tlsConfig() *tls.Config {
	if c.cfg.TLSConfig != nil {
		return c.cfg.TLSConfig.Clone()
	}
	return &tls.Config{ServerName: c.cfg.Host}
}

// dotStuff prepends a dot to body lines starting with one and normalizes
// line endings to CRLF, so the payload cannot terminate the DATA phase early.
func dotStuff(msg []byte) []byte {
	normalized := strings.ReplaceAll(string(msg), "\r\n", "\n")
	lines := strings.Split(normalized, "\n")

	var b strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, ".") {
			b.WriteString(".")
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	out := b.String()
	// Split leaves one empty trailing element when the message already ends
	// with a newline; drop the extra blank line it produces.
	if strings.HasSuffix(normalized, "\n") {
		out = strings.TrimSuffix(out, "\r\n")
	}
	return []byte(out)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
