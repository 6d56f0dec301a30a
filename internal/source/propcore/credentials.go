package propcore

import (
	"fmt"
	"net/http"

	"propsync/internal/domain"
	"propsync/internal/secrets"
)

// ClientCredentials authenticates requests with the connection's client id
// and secret. The secret is decrypted for each request and discarded with it.
type ClientCredentials struct {
	clientID string
	secret   func() (string, error)
}

func NewClientCredentials(conn *domain.Connection, codec *secrets.Codec) *ClientCredentials {
	encrypted := conn.EncryptedSecret
	return &ClientCredentials{
		clientID: conn.ClientID,
		secret: func() (string, error) {
			return codec.Decrypt(encrypted)
		},
	}
}

func (c *ClientCredentials) Apply(req *http.Request) error {
	secret, err := c.secret()
	if err != nil {
		return fmt.Errorf("decrypt client secret: %w", err)
	}

	req.SetBasicAuth(c.clientID, secret)
	return nil
}
