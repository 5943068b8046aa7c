// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/persistence/file"
	"github.com/dukex/clubflow/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the URL scheme: postgres:// and
// postgresql:// use PostgreSQL, file:// or a plain path is a file store root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider := parsePersistenceProvider(databaseURL); provider {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file":
		logger.InfoContext(ctx, "Using file persistence", "root", strings.TrimPrefix(databaseURL, "file://"))

		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider: %s", provider)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	case "file":
		return "file"
	default:
		return scheme
	}
}
