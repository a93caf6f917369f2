package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// FileTenantSource reads tenant configuration from a YAML file instead of
// the database. Intended for development and single-tenant deployments
// without postgres.
type FileTenantSource struct {
	path string
}

// NewFileTenantSource creates a tenant source backed by a YAML file.
func NewFileTenantSource(path string) *FileTenantSource {
	return &FileTenantSource{path: path}
}

type tenantsFile struct {
	Tenants []tenantEntry `yaml:"tenants"`
}

type tenantEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	Mail struct {
		Enabled   bool   `yaml:"enabled"`
		To        string `yaml:"to"`
		Frequency string `yaml:"frequency"`
		SMTP      struct {
			Host       string `yaml:"host"`
			Port       int    `yaml:"port"`
			Username   string `yaml:"username"`
			Password   string `yaml:"password"`
			FromAddr   string `yaml:"from_addr"`
			FromName   string `yaml:"from_name"`
			Encryption string `yaml:"encryption"`
		} `yaml:"smtp"`
	} `yaml:"mail"`

	Chat struct {
		Enabled    bool   `yaml:"enabled"`
		Number     string `yaml:"number"`
		Frequency  string `yaml:"frequency"`
		GatewayURL string `yaml:"gateway_url"`
		APIKey     string `yaml:"api_key"`
		Instance   string `yaml:"instance"`
	} `yaml:"chat"`
}

// ListTenants parses the file into tenant models. Malformed entries fail
// the whole load: a half-read tenant list must never drive a batch.
func (s *FileTenantSource) ListTenants(_ context.Context) ([]models.Tenant, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}

	var file tenantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}

	tenants := make([]models.Tenant, 0, len(file.Tenants))
	for i, entry := range file.Tenants {
		t, err := entry.toModel()
		if err != nil {
			return nil, fmt.Errorf("tenants file entry %d (%s): %w", i, entry.Name, err)
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

func (e tenantEntry) toModel() (models.Tenant, error) {
	if e.Name == "" {
		return models.Tenant{}, fmt.Errorf("name is required")
	}

	id, err := e.tenantID()
	if err != nil {
		return models.Tenant{}, err
	}

	mailFreq, err := parseFrequency(e.Mail.Frequency, e.Mail.Enabled)
	if err != nil {
		return models.Tenant{}, fmt.Errorf("mail: %w", err)
	}
	chatFreq, err := parseFrequency(e.Chat.Frequency, e.Chat.Enabled)
	if err != nil {
		return models.Tenant{}, fmt.Errorf("chat: %w", err)
	}

	encryption := models.Encryption(e.Mail.SMTP.Encryption)
	if encryption == "" {
		encryption = models.EncryptionSTARTTLS
	}
	switch encryption {
	case models.EncryptionNone, models.EncryptionSTARTTLS, models.EncryptionSSL:
	default:
		return models.Tenant{}, fmt.Errorf("unknown smtp encryption %q", e.Mail.SMTP.Encryption)
	}

	return models.Tenant{
		ID:            id,
		Name:          e.Name,
		MailEnabled:   e.Mail.Enabled,
		MailTo:        e.Mail.To,
		MailFrequency: mailFreq,
		SMTP: models.SMTPSettings{
			Host:       e.Mail.SMTP.Host,
			Port:       e.Mail.SMTP.Port,
			Username:   e.Mail.SMTP.Username,
			Password:   e.Mail.SMTP.Password,
			FromAddr:   e.Mail.SMTP.FromAddr,
			FromName:   e.Mail.SMTP.FromName,
			Encryption: encryption,
		},
		ChatEnabled:    e.Chat.Enabled,
		ChatNumber:     e.Chat.Number,
		ChatFrequency:  chatFreq,
		ChatGatewayURL: e.Chat.GatewayURL,
		ChatAPIKey:     e.Chat.APIKey,
		ChatInstance:   e.Chat.Instance,
	}, nil
}

// tenantID returns the explicit id or derives a stable one from the name,
// so results stay correlatable across runs without ids in the file.
func (e tenantEntry) tenantID() (uuid.UUID, error) {
	if e.ID != "" {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid id %q: %w", e.ID, err)
		}
		return id, nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("stockwatch/tenant/"+e.Name)), nil
}

func parseFrequency(raw string, channelEnabled bool) (models.Frequency, error) {
	if raw == "" {
		if channelEnabled {
			return "", fmt.Errorf("frequency is required for an enabled channel")
		}
		return models.FrequencyDaily, nil
	}
	freq := models.Frequency(raw)
	if !freq.IsValid() {
		return "", fmt.Errorf("unknown frequency %q", raw)
	}
	return freq, nil
}
