package api

import "github.com/papercomputeco/parley/pkg/llm"

// Config is the API server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Models is the catalog served by GET /api/models.
	Models llm.ModelCatalog
}
