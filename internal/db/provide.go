package db

import (
	"context"
	"fmt"
)

// GetDbProvider builds the configured provider. SQLite is the default so the
// console runs with zero external dependencies.
func GetDbProvider(ctx context.Context, provider DatabaseProvider) (Provider, error) {
	switch provider {
	case PostGreSQL:
		return newPostGreSQLProvider(ctx)
	case SQLite, "":
		return newSqliteProvider(ctx)
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", provider)
	}
}
