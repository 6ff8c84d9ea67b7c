package api

import (
	"context"

	"github.com/terra-clan/progression-engine/internal/models"
)

type contextKey string

const clientContextKey contextKey = "api_client"

// ClientFromContext returns the API client that AuthMiddleware resolved from
// the request's key, or nil on unauthenticated routes such as /health
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, _ := ctx.Value(clientContextKey).(*models.ApiClient)
	return client
}

// ContextWithClient stores the authenticated client for permission checks
// further down the handler chain
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}
