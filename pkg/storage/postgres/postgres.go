// Package postgres implements the gateway's key and app lookups on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/storage"
)

// KeyStore implements auth.KeyStore on the api_keys table
type KeyStore struct {
	db *sql.DB
}

// NewKeyStore creates a new KeyStore
func NewKeyStore(db *sql.DB) *KeyStore {
	return &KeyStore{db: db}
}

const findKeyByHashQuery = `
		SELECT k.id, k.key_hash, k.workspace_id, w.plan, k.scopes, k.app_id, k.expires_at, k.last_used_at
		FROM api_keys k
		JOIN workspaces w ON w.id = k.workspace_id
		WHERE k.key_hash = $1
	`

// FindByHash implements auth.KeyStore
func (s *KeyStore) FindByHash(ctx context.Context, keyHash string) (*auth.APIKeyCredential, error) {
	var (
		cred       auth.APIKeyCredential
		plan       string
		scopes     pq.StringArray
		appID      sql.NullString
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, findKeyByHashQuery, keyHash).Scan(
		&cred.ID, &cred.KeyHash, &cred.WorkspaceID, &plan, &scopes, &appID, &expiresAt, &lastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	cred.WorkspacePlan = auth.Plan(plan)
	cred.Scopes = make([]auth.Scope, 0, len(scopes))
	for _, s := range scopes {
		// Unknown scopes grant nothing
		if scope := auth.Scope(s); scope.Valid() {
			cred.Scopes = append(cred.Scopes, scope)
		}
	}
	if appID.Valid {
		cred.AppID = &appID.String
	}
	if expiresAt.Valid {
		cred.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		cred.LastUsedAt = &lastUsedAt.Time
	}

	return &cred, nil
}

// TouchLastUsed implements auth.KeyStore
func (s *KeyStore) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, at)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", err)
	}
	return nil
}

// AppStore implements storage.AppStore on the apps table
type AppStore struct {
	db *sql.DB
}

// NewAppStore creates a new AppStore
func NewAppStore(db *sql.DB) *AppStore {
	return &AppStore{db: db}
}

// FindBySlug implements storage.AppStore
func (s *AppStore) FindBySlug(ctx context.Context, workspaceID, slug string) (*storage.App, error) {
	app := &storage.App{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, slug FROM apps WHERE workspace_id = $1 AND slug = $2`,
		workspaceID, slug,
	).Scan(&app.ID, &app.WorkspaceID, &app.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up app: %w", err)
	}
	return app, nil
}
