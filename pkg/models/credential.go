package models

import (
	"fmt"
	"time"
)

// Credential holds connection details for a source database. Password is
// plaintext in memory only; the store persists it encrypted.
type Credential struct {
	CredentialID int64
	ConnectionID string
	SourceType   string
	Host         string
	Port         int
	DatabaseName string
	Username     string
	Password     string
	SSLMode      string
	IsActive     bool
	Description  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DSN returns the keyword/value connection string for the credential.
func (c *Credential) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DatabaseName, c.SSLMode)
}
