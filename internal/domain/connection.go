package domain

import (
	"errors"
	"time"
)

type ConnectionStatus string

const (
	ConnectionStatusUnconfigured ConnectionStatus = "unconfigured"
	ConnectionStatusConfigured   ConnectionStatus = "configured"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// ErrRunAlreadyActive is returned when a sync run is requested for a
// connection that already has a pending or running run.
var ErrRunAlreadyActive = errors.New("connection already has an active sync run")

// Connection holds the credentials and state for one remote PropCore account.
// The client secret is stored encrypted; it is only decrypted at request time
// by the credential provider.
type Connection struct {
	ID              int64            `db:"id"`
	Name            string           `db:"name"`
	BaseURL         string           `db:"base_url"`
	ClientID        string           `db:"client_id"`
	EncryptedSecret []byte           `db:"encrypted_secret"`
	Status          ConnectionStatus `db:"status"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

func (c *Connection) IsConfigured() bool {
	return c.BaseURL != "" && c.ClientID != "" && len(c.EncryptedSecret) > 0
}
