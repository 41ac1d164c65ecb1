package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/persistence/file"
	"github.com/dukex/approvion/pkg/persistence/postgresql"
)

// NewPersistence selects a storage backend from the database URL scheme:
// postgres for shared deployments, the file store for everything else.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		persist, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return persist
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)

	return parts[0]
}
