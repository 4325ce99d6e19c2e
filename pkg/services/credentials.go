package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/crypto"
	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
)

// DefaultSourceType is the source kind stored when none is given.
const DefaultSourceType = "postgresql"

// CredentialService stores and resolves source-database credentials,
// encrypting passwords at rest.
type CredentialService interface {
	// Store encrypts the credential's password and upserts it.
	Store(ctx context.Context, cred *models.Credential) error
	// Resolve returns the active credential for a connection with the
	// password decrypted.
	Resolve(ctx context.Context, connectionID string) (*models.Credential, error)
	// List returns all stored credentials without passwords.
	List(ctx context.Context) ([]*models.Credential, error)
	Delete(ctx context.Context, connectionID string) error
}

type credentialService struct {
	repo   repositories.CredentialRepository
	cipher *crypto.PasswordCipher
	logger *zap.Logger
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(repo repositories.CredentialRepository, cipher *crypto.PasswordCipher, logger *zap.Logger) CredentialService {
	return &credentialService{repo: repo, cipher: cipher, logger: logger}
}

var _ CredentialService = (*credentialService)(nil)

func (s *credentialService) Store(ctx context.Context, cred *models.Credential) error {
	if cred.SourceType == "" {
		cred.SourceType = DefaultSourceType
	}
	if cred.SSLMode == "" {
		cred.SSLMode = "prefer"
	}

	encrypted, err := s.cipher.Encrypt(cred.Password)
	if err != nil {
		return err
	}

	if err := s.repo.Upsert(ctx, cred, encrypted); err != nil {
		return err
	}

	s.logger.Info("Stored credential",
		zap.String("connection_id", cred.ConnectionID),
		zap.String("host", cred.Host),
		zap.String("database", cred.DatabaseName))
	return nil
}

func (s *credentialService) Resolve(ctx context.Context, connectionID string) (*models.Credential, error) {
	cred, encrypted, err := s.repo.GetActive(ctx, connectionID, DefaultSourceType)
	if err != nil {
		return nil, err
	}

	password, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	cred.Password = password
	return cred, nil
}

func (s *credentialService) List(ctx context.Context) ([]*models.Credential, error) {
	return s.repo.List(ctx)
}

func (s *credentialService) Delete(ctx context.Context, connectionID string) error {
	if err := s.repo.Delete(ctx, connectionID, DefaultSourceType); err != nil {
		return err
	}
	s.logger.Info("Deleted credential", zap.String("connection_id", connectionID))
	return nil
}
