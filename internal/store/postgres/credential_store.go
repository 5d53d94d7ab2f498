package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadbot/internal/crypto"
	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// CredentialStore implements domain.CredentialStore using PostgreSQL. API
// secrets and passphrases are stored encrypted; rows are decrypted with the
// vault on read so the engine only ever sees plaintext in memory.
type CredentialStore struct {
	pool  *pgxpool.Pool
	vault *crypto.Vault
}

// NewCredentialStore creates a CredentialStore over the given pool, using
// vault to seal and open secrets.
func NewCredentialStore(pool *pgxpool.Pool, vault *crypto.Vault) *CredentialStore {
	return &CredentialStore{pool: pool, vault: vault}
}

// GetByUser returns the user's credential sets keyed by exchange name, with
// secrets decrypted.
func (s *CredentialStore) GetByUser(ctx context.Context, userID int64) (map[string]domain.Credentials, error) {
	const query = `
		SELECT exchange, api_key, api_secret_enc, passphrase_enc
		FROM exchange_credentials
		WHERE user_id = $1`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list credentials for user %d: %w", userID, err)
	}
	defer rows.Close()

	creds := make(map[string]domain.Credentials)
	for rows.Next() {
		var (
			exchange      string
			apiKey        string
			secretEnc     []byte
			passphraseEnc []byte
		)
		if err := rows.Scan(&exchange, &apiKey, &secretEnc, &passphraseEnc); err != nil {
			return nil, fmt.Errorf("postgres: scan credentials: %w", err)
		}

		secret, err := s.vault.Decrypt(secretEnc)
		if err != nil {
			return nil, fmt.Errorf("postgres: decrypt %s secret for user %d: %w", exchange, userID, err)
		}
		c := domain.Credentials{APIKey: apiKey, APISecret: secret}
		if len(passphraseEnc) > 0 {
			pass, err := s.vault.Decrypt(passphraseEnc)
			if err != nil {
				return nil, fmt.Errorf("postgres: decrypt %s passphrase for user %d: %w", exchange, userID, err)
			}
			c.Passphrase = pass
		}
		creds[exchange] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list credentials for user %d: %w", userID, err)
	}
	return creds, nil
}

// Put stores or replaces one exchange credential set for the user, sealing
// the secret fields before they touch the database.
func (s *CredentialStore) Put(ctx context.Context, userID int64, exchange string, c domain.Credentials) error {
	secretEnc, err := s.vault.Encrypt(c.APISecret)
	if err != nil {
		return fmt.Errorf("postgres: encrypt %s secret: %w", exchange, err)
	}
	var passphraseEnc []byte
	if c.Passphrase != "" {
		passphraseEnc, err = s.vault.Encrypt(c.Passphrase)
		if err != nil {
			return fmt.Errorf("postgres: encrypt %s passphrase: %w", exchange, err)
		}
	}

	const query = `
		INSERT INTO exchange_credentials (user_id, exchange, api_key, api_secret_enc, passphrase_enc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, exchange) DO UPDATE
		SET api_key = EXCLUDED.api_key,
		    api_secret_enc = EXCLUDED.api_secret_enc,
		    passphrase_enc = EXCLUDED.passphrase_enc,
		    updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, userID, exchange, c.APIKey, secretEnc, passphraseEnc); err != nil {
		return fmt.Errorf("postgres: put credentials for user %d on %s: %w", userID, exchange, err)
	}
	return nil
}

// Delete removes one exchange credential set.
func (s *CredentialStore) Delete(ctx context.Context, userID int64, exchange string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM exchange_credentials WHERE user_id = $1 AND exchange = $2`,
		userID, exchange,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete credentials for user %d on %s: %w", userID, exchange, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.CredentialStore = (*CredentialStore)(nil)
