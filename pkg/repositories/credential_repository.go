package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-data/catalogd/pkg/apperrors"
	"github.com/meridian-data/catalogd/pkg/database"
	"github.com/meridian-data/catalogd/pkg/models"
)

// CredentialRepository provides data access for stored source credentials.
// Passwords cross this boundary already encrypted; encryption lives in the
// credential service.
type CredentialRepository interface {
	// Upsert inserts or updates the credential for (connection_id, source_type).
	Upsert(ctx context.Context, cred *models.Credential, passwordEncrypted string) error
	// GetActive returns the active credential for a connection together with
	// its encrypted password.
	GetActive(ctx context.Context, connectionID, sourceType string) (*models.Credential, string, error)
	// List returns all credentials, active and inactive, without passwords.
	List(ctx context.Context) ([]*models.Credential, error)
	Deactivate(ctx context.Context, connectionID, sourceType string) error
	Delete(ctx context.Context, connectionID, sourceType string) error
}

type credentialRepository struct {
	db *database.DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *database.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

var _ CredentialRepository = (*credentialRepository)(nil)

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.Credential, passwordEncrypted string) error {
	query := `
		INSERT INTO credentials (
			connection_id, source_type, host, port, database_name,
			username, password_encrypted, ssl_mode, is_active, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		ON CONFLICT (connection_id, source_type)
		DO UPDATE SET
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			database_name = EXCLUDED.database_name,
			username = EXCLUDED.username,
			password_encrypted = EXCLUDED.password_encrypted,
			ssl_mode = EXCLUDED.ssl_mode,
			is_active = TRUE,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING credential_id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		cred.ConnectionID, cred.SourceType, cred.Host, cred.Port, cred.DatabaseName,
		cred.Username, passwordEncrypted, cred.SSLMode, cred.Description,
	).Scan(&cred.CredentialID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	cred.IsActive = true
	return nil
}

func (r *credentialRepository) GetActive(ctx context.Context, connectionID, sourceType string) (*models.Credential, string, error) {
	query := `
		SELECT credential_id, connection_id, source_type, host, port, database_name,
		       username, password_encrypted, ssl_mode, is_active, description,
		       created_at, updated_at
		FROM credentials
		WHERE connection_id = $1 AND source_type = $2 AND is_active = TRUE`

	var (
		cred              models.Credential
		passwordEncrypted string
	)
	err := r.db.QueryRow(ctx, query, connectionID, sourceType).Scan(
		&cred.CredentialID, &cred.ConnectionID, &cred.SourceType, &cred.Host,
		&cred.Port, &cred.DatabaseName, &cred.Username, &passwordEncrypted,
		&cred.SSLMode, &cred.IsActive, &cred.Description,
		&cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, passwordEncrypted, nil
}

func (r *credentialRepository) List(ctx context.Context) ([]*models.Credential, error) {
	query := `
		SELECT credential_id, connection_id, source_type, host, port, database_name,
		       username, ssl_mode, is_active, description, created_at, updated_at
		FROM credentials
		ORDER BY connection_id, source_type`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*models.Credential, 0)
	for rows.Next() {
		var cred models.Credential
		err := rows.Scan(
			&cred.CredentialID, &cred.ConnectionID, &cred.SourceType, &cred.Host,
			&cred.Port, &cred.DatabaseName, &cred.Username, &cred.SSLMode,
			&cred.IsActive, &cred.Description, &cred.CreatedAt, &cred.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return creds, nil
}

func (r *credentialRepository) Deactivate(ctx context.Context, connectionID, sourceType string) error {
	query := `
		UPDATE credentials
		SET is_active = FALSE, updated_at = NOW()
		WHERE connection_id = $1 AND source_type = $2 AND is_active = TRUE`

	result, err := r.db.Exec(ctx, query, connectionID, sourceType)
	if err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, connectionID, sourceType string) error {
	query := `DELETE FROM credentials WHERE connection_id = $1 AND source_type = $2`

	result, err := r.db.Exec(ctx, query, connectionID, sourceType)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
