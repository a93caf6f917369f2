package mail

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/models"
)

// fakeServer is a scripted SMTP endpoint: it sends the greeting, then
// answers each client command with the next scripted reply. After replying
// 354 it consumes the message body up to the lone-dot terminator. When a
// certificate is set it upgrades the connection after answering STARTTLS
// with 220.
type fakeServer struct {
	ln       net.Listener
	greeting string
	replies  []string
	cert     *tls.Certificate

	mu       sync.Mutex
	commands []string
	body     string

	done chan struct{}
}

func newFakeServer(t *testing.T, greeting string, replies ...string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return startFakeServer(t, ln, nil, greeting, replies)
}

// newFakeStartTLSServer answers STARTTLS with the scripted 220 reply and
// then runs the TLS handshake with the given certificate.
func newFakeStartTLSServer(t *testing.T, cert tls.Certificate, greeting string, replies ...string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return startFakeServer(t, ln, &cert, greeting, replies)
}

// newFakeTLSServer speaks TLS from the first byte (implicit TLS).
func newFakeTLSServer(t *testing.T, cert tls.Certificate, greeting string, replies ...string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	return startFakeServer(t, ln, nil, greeting, replies)
}

func startFakeServer(t *testing.T, ln net.Listener, cert *tls.Certificate, greeting string, replies []string) *fakeServer {
	s := &fakeServer{
		ln:       ln,
		greeting: greeting,
		replies:  replies,
		cert:     cert,
		done:     make(chan struct{}),
	}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) addr() (string, int) {
	tcp := s.ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcp.Port
}

func (s *fakeServer) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	if _, err := conn.Write([]byte(s.greeting + "\r\n")); err != nil {
		return
	}

	for _, reply := range s.replies {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		if _, err := conn.Write([]byte(reply + "\r\n")); err != nil {
			return
		}

		if s.cert != nil && line == "STARTTLS" && strings.HasPrefix(reply, "220") {
			tlsConn := tls.Server(conn, &tls.Config{Certificates: []tls.Certificate{*s.cert}})
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			r = bufio.NewReader(conn)
			continue
		}

		if strings.HasPrefix(reply, "354") {
			var body strings.Builder
			for {
				bodyLine, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if bodyLine == ".\r\n" {
					break
				}
				body.WriteString(bodyLine)
			}
			s.mu.Lock()
			s.body = body.String()
			s.mu.Unlock()

			if _, err := conn.Write([]byte("250 2.0.0 queued\r\n")); err != nil {
				return
			}
		}
	}
}

// wait blocks until the server goroutine finished (client closed the socket)
func (s *fakeServer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("fake server did not finish")
	}
}

func (s *fakeServer) gotCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func testConfig(host string, port int) Config {
	return Config{
		Host:       host,
		Port:       port,
		Username:   "notifier@tenant.example",
		Password:   "secret",
		Encryption: models.EncryptionNone,
		Timeout:    2 * time.Second,
	}
}

func TestClient_Send_HappyPath(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250-fake.example\r\n250-AUTH LOGIN PLAIN\r\n250 8BITMIME", // EHLO, multi-line reply
		"334 VXNlcm5hbWU6", // AUTH LOGIN
		"334 UGFzc3dvcmQ6", // username
		"235 2.7.0 accepted", // password
		"250 2.1.0 ok",     // MAIL FROM
		"250 2.1.5 ok",     // RCPT TO
		"354 go ahead",     // DATA (body handled by the server)
		"221 2.0.0 bye",    // QUIT
	)
	host, port := srv.addr()

	client := NewClient(testConfig(host, port), logger.Get())
	msg := []byte("Subject: s\r\n\r\n.leading dot\r\nbody\r\n")

	result, err := client.Send(context.Background(), "noreply@tenant.example", []string{"dono@tenant.example"}, msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"dono@tenant.example"}, result.Accepted)
	assert.Empty(t, result.Rejected)

	srv.wait(t)
	cmds := srv.gotCommands()
	assert.Equal(t, "EHLO stockwatch", cmds[0])
	assert.Equal(t, "AUTH LOGIN", cmds[1])
	assert.Equal(t, "MAIL FROM:<noreply@tenant.example>", cmds[4])
	assert.Equal(t, "RCPT TO:<dono@tenant.example>", cmds[5])
	assert.Equal(t, "DATA", cmds[6])
	assert.Equal(t, "QUIT", cmds[7])

	// dot-stuffing applied on the wire
	assert.Contains(t, srv.body, "..leading dot\r\n")
}

func TestClient_Send_AuthRejectedStillQuits(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250 fake.example",
		"535 5.7.8 authentication credentials invalid", // AUTH LOGIN
		"221 2.0.0 bye", // QUIT
	)
	host, port := srv.addr()

	client := NewClient(testConfig(host, port), logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	require.ErrorIs(t, err, ErrAuth)

	srv.wait(t)
	cmds := srv.gotCommands()
	assert.Equal(t, "QUIT", cmds[len(cmds)-1], "client must terminate cleanly after auth failure")
}

func TestClient_Send_PartialRecipientAcceptance(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250 fake.example",
		"334 VXNlcm5hbWU6",
		"334 UGFzc3dvcmQ6",
		"235 accepted",
		"250 ok",                         // MAIL FROM
		"550 5.1.1 mailbox unavailable",  // first RCPT rejected
		"250 ok",                         // second RCPT accepted
		"354 go ahead",
		"221 bye",
	)
	host, port := srv.addr()

	client := NewClient(testConfig(host, port), logger.Get())
	result, err := client.Send(context.Background(), "a@b.c",
		[]string{"gone@tenant.example", "dono@tenant.example"}, []byte("m"))

	require.NoError(t, err, "one accepted recipient is a successful send")
	assert.Equal(t, []string{"dono@tenant.example"}, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0], "gone@tenant.example")
	assert.Contains(t, result.Rejected[0], "550")
}

func TestClient_Send_AllRecipientsRejected(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250 fake.example",
		"334 VXNlcm5hbWU6",
		"334 UGFzc3dvcmQ6",
		"235 accepted",
		"250 ok",
		"550 no such user",
		"221 bye",
	)
	host, port := srv.addr()

	client := NewClient(testConfig(host, port), logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"gone@tenant.example"}, []byte("m"))
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestClient_Send_GreetingFailure(t *testing.T) {
	srv := newFakeServer(t, "554 5.3.0 no service",
		"221 bye",
	)
	host, port := srv.addr()

	client := NewClient(testConfig(host, port), logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestClient_Send_SilentServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// never send the greeting
		time.Sleep(3 * time.Second)
		conn.Close()
	}()

	tcp := ln.Addr().(*net.TCPAddr)
	cfg := testConfig("127.0.0.1", tcp.Port)
	cfg.Timeout = 200 * time.Millisecond

	client := NewClient(cfg, logger.Get())
	_, err = client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	// bind and close to get a port that refuses connections
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient(testConfig("127.0.0.1", port), logger.Get())
	_, err = client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestClient_SingleUse(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250 fake.example",
		"334 VXNlcm5hbWU6",
		"334 UGFzc3dvcmQ6",
		"235 accepted",
		"250 ok",
		"250 ok",
		"354 go ahead",
		"221 bye",
	)
	host, port := srv.addr()

	client := NewClient(testConfig(host, port), logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	assert.ErrorIs(t, err, ErrClientReused)
}

func TestClient_Send_StartTLSRejected(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250-fake.example\r\n250 8BITMIME",
		"502 5.5.1 command not implemented", // STARTTLS
		"221 bye",
	)
	host, port := srv.addr()

	cfg := testConfig(host, port)
	cfg.Encryption = models.EncryptionSTARTTLS

	client := NewClient(cfg, logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	assert.ErrorIs(t, err, ErrTLS)
}

// newTestCert issues a short-lived self-signed certificate for 127.0.0.1
// and a pool that trusts it.
func newTestCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "fake.example"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

func TestClient_Send_StartTLSUpgrade(t *testing.T) {
	cert, pool := newTestCert(t)
	srv := newFakeStartTLSServer(t, cert, "220 fake ESMTP",
		"250-fake.example\r\n250 STARTTLS",
		"220 2.0.0 ready to start TLS", // handshake follows, then EHLO repeats
		"250-fake.example\r\n250 AUTH LOGIN",
		"334 VXNlcm5hbWU6",
		"334 UGFzc3dvcmQ6",
		"235 accepted",
		"250 ok", // MAIL FROM
		"250 ok", // RCPT TO
		"354 go ahead",
		"221 bye",
	)
	host, port := srv.addr()

	cfg := testConfig(host, port)
	cfg.Encryption = models.EncryptionSTARTTLS
	cfg.TLSConfig = &tls.Config{RootCAs: pool, ServerName: host}

	client := NewClient(cfg, logger.Get())
	result, err := client.Send(context.Background(), "noreply@tenant.example",
		[]string{"dono@tenant.example"}, []byte("Subject: s\r\n\r\nbody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dono@tenant.example"}, result.Accepted)

	srv.wait(t)
	cmds := srv.gotCommands()
	assert.Equal(t, "EHLO stockwatch", cmds[0])
	assert.Equal(t, "STARTTLS", cmds[1])
	assert.Equal(t, "EHLO stockwatch", cmds[2], "EHLO must be re-issued after the upgrade")
	assert.Equal(t, "AUTH LOGIN", cmds[3])
	assert.Equal(t, "QUIT", cmds[len(cmds)-1])

	// the body traveled over the encrypted channel
	assert.Contains(t, srv.body, "body\r\n")
}

func TestClient_Send_StartTLSVerifiesByDefault(t *testing.T) {
	cert, _ := newTestCert(t)
	srv := newFakeStartTLSServer(t, cert, "220 fake ESMTP",
		"250-fake.example\r\n250 STARTTLS",
		"220 2.0.0 ready to start TLS",
	)
	host, port := srv.addr()

	cfg := testConfig(host, port)
	cfg.Encryption = models.EncryptionSTARTTLS
	// no TLSConfig override: the default path must reject the self-signed cert

	client := NewClient(cfg, logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	assert.ErrorIs(t, err, ErrTLS)
}

func TestClient_Send_ImplicitTLS(t *testing.T) {
	cert, pool := newTestCert(t)
	srv := newFakeTLSServer(t, cert, "220 fake ESMTP",
		"250 fake.example",
		"334 VXNlcm5hbWU6",
		"334 UGFzc3dvcmQ6",
		"235 accepted",
		"250 ok",
		"250 ok",
		"354 go ahead",
		"221 bye",
	)
	host, port := srv.addr()

	cfg := testConfig(host, port)
	cfg.Encryption = models.EncryptionSSL
	cfg.TLSConfig = &tls.Config{RootCAs: pool, ServerName: host}

	client := NewClient(cfg, logger.Get())
	result, err := client.Send(context.Background(), "noreply@tenant.example",
		[]string{"dono@tenant.example"}, []byte("m"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dono@tenant.example"}, result.Accepted)

	srv.wait(t)
	assert.Equal(t, "EHLO stockwatch", srv.gotCommands()[0])
}

func TestClient_Send_NoAuthWhenUsernameEmpty(t *testing.T) {
	srv := newFakeServer(t, "220 fake ESMTP",
		"250 fake.example",
		"250 ok", // MAIL FROM directly, no AUTH
		"250 ok",
		"354 go ahead",
		"221 bye",
	)
	host, port := srv.addr()

	cfg := testConfig(host, port)
	cfg.Username = ""
	cfg.Password = ""

	client := NewClient(cfg, logger.Get())
	_, err := client.Send(context.Background(), "a@b.c", []string{"x@y.z"}, []byte("m"))
	require.NoError(t, err)

	srv.wait(t)
	for _, cmd := range srv.gotCommands() {
		assert.NotContains(t, cmd, "AUTH")
	}
}
