package db

import (
	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/internal/profile"
	"github.com/mystica-ai/mystica/store"
	"github.com/mystica-ai/mystica/store/db/postgres"
	"github.com/mystica-ai/mystica/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
// PostgreSQL is the reference implementation for production; SQLite serves
// development and single-node deployments.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
