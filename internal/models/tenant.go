package models

import (
	"time"

	"github.com/google/uuid"
)

// Frequency defines how often a channel fires.
type Frequency string

// Frequency constants define the supported report schedules.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// IsValid checks if the frequency is one of the supported values.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Encryption defines the SMTP transport security mode.
// Values follow the common mailer convention: "tls" means STARTTLS on a
// plain connection, "ssl" means implicit TLS from the first byte.
type Encryption string

// Encryption constants define the supported SMTP security modes.
const (
	EncryptionNone     Encryption = "none"
	EncryptionSTARTTLS Encryption = "tls"
	EncryptionSSL      Encryption = "ssl"
)

// SMTPSettings holds per-tenant mail server credentials.
type SMTPSettings struct {
	Host       string     `json:"host" db:"smtp_host"`
	Port       int        `json:"port" db:"smtp_port"`
	Username   string     `json:"username" db:"smtp_username"`
	Password   string     `json:"-" db:"smtp_password"`
	FromAddr   string     `json:"from_addr" db:"smtp_from_addr"`
	FromName   string     `json:"from_name" db:"smtp_from_name"`
	Encryption Encryption `json:"encryption" db:"smtp_encryption"`
}

// Tenant is one customer organization with its channel configuration.
// The dispatcher treats it as immutable for the duration of a run.
type Tenant struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`

	// mail channel
	MailEnabled   bool      `json:"mail_enabled" db:"mail_enabled"`
	MailTo        string    `json:"mail_to" db:"mail_to"`
	MailFrequency Frequency `json:"mail_frequency" db:"mail_frequency"`
	SMTP          SMTPSettings

	// chat channel (WhatsApp gateway)
	ChatEnabled    bool      `json:"chat_enabled" db:"chat_enabled"`
	ChatNumber     string    `json:"chat_number" db:"chat_number"`
	ChatFrequency  Frequency `json:"chat_frequency" db:"chat_frequency"`
	ChatGatewayURL string    `json:"chat_gateway_url" db:"chat_gateway_url"`
	ChatAPIKey     string    `json:"-" db:"chat_api_key"`
	ChatInstance   string    `json:"chat_instance" db:"chat_instance"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MailConfigured reports whether the mail channel has everything it needs
// to be attempted on the wire.
func (t *Tenant) MailConfigured() bool {
	return t.MailTo != "" &&
		t.SMTP.Host != "" &&
		t.SMTP.Port > 0 &&
		t.SMTP.Username != "" &&
		t.SMTP.Password != ""
}

// ChatConfigured reports whether the chat channel has everything it needs
// to be attempted on the wire.
func (t *Tenant) ChatConfigured() bool {
	return t.ChatNumber != "" && t.ChatGatewayURL != "" && t.ChatAPIKey != ""
}

// HasEnabledChannel reports whether at least one channel is switched on.
func (t *Tenant) HasEnabledChannel() bool {
	return t.MailEnabled || t.ChatEnabled
}

// MailFrom returns the envelope sender address, falling back to the
// SMTP username when no explicit from address is configured.
func (t *Tenant) MailFrom() string {
	if t.SMTP.FromAddr != "" {
		return t.SMTP.FromAddr
	}
	return t.SMTP.Username
}
