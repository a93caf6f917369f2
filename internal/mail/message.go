package mail

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"strings"
	"time"
	"unicode/utf8"
)

const base64LineLength = 76

// BuildMessage renders a multipart/alternative MIME document with a
// text/plain and a text/html part, both base64 encoded. Pure function apart
// from the random boundary and the Date header; it performs no I/O.
func BuildMessage(fromName, fromAddr, to, subject, textBody, htmlBody string) ([]byte, error) {
	for _, s := range []string{fromName, subject, textBody, htmlBody} {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("message contains invalid utf-8")
		}
	}

	boundary, err := randomBoundary()
	if err != nil {
		return nil, fmt.Errorf("generate boundary: %w", err)
	}

	var b strings.Builder
	b.WriteString("From: " + formatAddress(fromName, fromAddr) + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + encodeHeader(subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n")
	b.WriteString("\r\n")

	writePart(&b, boundary, "text/plain", textBody)
	writePart(&b, boundary, "text/html", htmlBody)

	b.WriteString("--" + boundary + "--\r\n")

	return []byte(b.String()), nil
}

func writePart(b *strings.Builder, boundary, contentType, body string) {
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: " + contentType + "; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrapBase64([]byte(body)))
	b.WriteString("\r\n")
}

// randomBoundary returns a high-entropy boundary token. Derived from
// crypto/rand so it cannot collide with message content or repeat across
// messages sent in the same instant.
func randomBoundary() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "=_" + hex.EncodeToString(buf), nil
}

// encodeHeader applies RFC 2047 base64 encoding when the value is not
// plain ASCII.
func encodeHeader(s string) string {
	return mime.BEncoding.Encode("UTF-8", s)
}

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return encodeHeader(name) + " <" + addr + ">"
}

// wrapBase64 encodes data and folds it into RFC 2045 76-column lines.
func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	var b strings.Builder
	for len(encoded) > base64LineLength {
		b.WriteString(encoded[:base64LineLength])
		b.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	b.WriteString(encoded)
	return b.String()
}
