package datastoredb

import (
	"context"
	"io"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/option"
)

// gcdatastore wraps an actual google cloud datastore Client for real/production datastore interaction
type gcdatastore struct {
	*datastore.Client
	gcloudProjectID  string
	gcloudClientOpts []option.ClientOption
}

// connecter is implemented by any value that has a connect method
type connecter interface {
	connect() (err error)
}

// connect creates a new client instance from the initial gcloud project id and client options
// If the client options can be updated during the course of a process (such as option.WithCredentialsFile),
// connect should be able to reflect changes in those when it lazily reconnects on error
func (ds *gcdatastore) connect() (err error) {
	ctx := context.Background()

	client, err := datastore.NewClient(ctx, ds.gcloudProjectID, ds.gcloudClientOpts...)
	if err != nil {
		return err
	}

	if ds.Client != nil {
		ds.Client.Close()
	}

	ds.Client = client
	return nil
}

// datastorer is implemented by any value that implements all of its methods. It is meant
// to allow easier testing decoupled from an actual datastore to interact with and
// the methods defined are method implemented by the datastore.Client that this package
// uses
type datastorer interface {
	connecter
	io.Closer
	Count(c context.Context, q *datastore.Query) (n int, err error)
	Delete(c context.Context, k *datastore.Key) (err error)
	DeleteMulti(c context.Context, keys []*datastore.Key) (err error)
	Get(c context.Context, k *datastore.Key, dest interface{}) (err error)
	GetAll(c context.Context, q *datastore.Query, dest interface{}) (keys []*datastore.Key, err error)
	Put(c context.Context, k *datastore.Key, v interface{}) (key *datastore.Key, err error)
	PutMulti(c context.Context, keys []*datastore.Key, src interface{}) (ret []*datastore.Key, err error)
}
