package main

import (
	"fmt"
	"strings"

	"github.com/alexandre-normand/standupscot/config"
	"github.com/alexandre-normand/standupscot/store"
	"github.com/alexandre-normand/standupscot/store/datastoredb"
	"github.com/alexandre-normand/standupscot/store/inmemorydb"
	"github.com/alexandre-normand/standupscot/store/sqldb"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var storageKinds = []string{config.LevelDBStorage, config.DatastoreStorage, config.SQLStorage}

// newStorer returns the storer of the configured storage kind, fronted by an in-memory cache of members and
// unsubscribed users unless disabled
func newStorer(v *viper.Viper) (s store.Storer, err error) {
	var backend store.Storer

	switch kind := v.GetString(config.StorageKindKey); kind {
	case config.LevelDBStorage:
		backend, err = store.NewLevelDB(v.GetString(config.StorageNamespaceKey), v.GetString(config.StoragePathKey))
	case config.DatastoreStorage:
		opts := make([]option.ClientOption, 0)
		if creds := v.GetString(config.StorageGCloudCredsKey); creds != "" {
			opts = append(opts, option.WithCredentialsFile(creds))
		}

		backend, err = datastoredb.New(v.GetString(config.StorageNamespaceKey), v.GetString(config.StorageGCloudProjectKey), opts...)
	case config.SQLStorage:
		backend, err = sqldb.New(v.GetString(config.StorageSQLDriverKey), v.GetString(config.StorageDSNKey))
	default:
		return nil, fmt.Errorf("unknown storage kind [%s], expected one of %s", kind, strings.Join(storageKinds, ", "))
	}

	if err != nil {
		return nil, err
	}

	if !v.GetBool(config.StorageInMemoryCacheKey) {
		return backend, nil
	}

	cached, err := inmemorydb.New(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return cached, nil
}
