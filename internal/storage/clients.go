package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/terra-clan/progression-engine/internal/models"
)

// CreateClient provisions an API client
func (r *SQLRepository) CreateClient(ctx context.Context, c *models.ApiClient) error {
	permissionsJSON, err := json.Marshal(c.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.exec(ctx, `
		INSERT INTO api_clients (id, name, api_key, is_active, created_at, last_used_at, permissions, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		c.ID,
		c.Name,
		c.ApiKey,
		c.IsActive,
		c.CreatedAt,
		nullTime(c.LastUsedAt),
		string(permissionsJSON),
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", r.translate(err))
	}

	return nil
}

// GetClientByApiKey retrieves an API client by its key
func (r *SQLRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.db.queryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	// Parse permissions JSON array
	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	// Parse metadata JSON object
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *SQLRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = $2 WHERE api_key = $1`

	_, err := r.db.exec(ctx, query, apiKey, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}
