package datastoredb

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/datastore"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// Entity kinds
const (
	memberKind       = "ChannelMember"
	unsubscribedKind = "UnsubscribedUser"
	standupKind      = "Standup"
	connectivityKind = "Connectivity"
)

// Datastore rejects multi operations on more than 500 keys
const maxBatchSize = 500

// DatastoreDB implements store.Storer on top of the google cloud datastore. All entities are isolated
// in the datastore namespace given at creation
type DatastoreDB struct {
	datastorer
	namespace string
}

// userEntity represents a channel member or an unsubscribed user. The username is the entity key
type userEntity struct {
	Username string
}

// standupEntity represents a standup record. Datastore doesn't support pointer-to-string properties so
// optional fields carry their presence explicitly
type standupEntity struct {
	Username    string
	Team        string
	DatePosted  string
	Today       string `datastore:",noindex"`
	Previous    string `datastore:",noindex"`
	HasPrevious bool   `datastore:",noindex"`
	Blockers    string `datastore:",noindex"`
	HasBlockers bool   `datastore:",noindex"`
}

func newStandupEntity(r standup.Record) (e *standupEntity) {
	e = &standupEntity{Username: r.Username, Team: r.Team, DatePosted: r.DatePosted, Today: r.Today}

	if r.Previous != nil {
		e.Previous, e.HasPrevious = *r.Previous, true
	}

	if r.Blockers != nil {
		e.Blockers, e.HasBlockers = *r.Blockers, true
	}

	return e
}

func (e *standupEntity) record() (r standup.Record) {
	r = standup.Record{Username: e.Username, Team: e.Team, DatePosted: e.DatePosted, Today: e.Today}

	if e.HasPrevious {
		previous := e.Previous
		r.Previous = &previous
	}

	if e.HasBlockers {
		blockers := e.Blockers
		r.Blockers = &blockers
	}

	return r
}

// New returns a new instance of DatastoreDB for the given namespace. This function also requires a gcloudProjectID
// as well as at least one option to provide gcloud client credentials
func New(namespace string, gcloudProjectID string, gcloudClientOpts ...option.ClientOption) (dsdb *DatastoreDB, err error) {
	gc := gcdatastore{gcloudProjectID: gcloudProjectID, gcloudClientOpts: gcloudClientOpts}

	return newWithDatastorer(namespace, &gc)
}

// newWithDatastorer returns a new instance of DatastoreDB for the given namespace and datastorer. It connects and
// validates connectivity before returning
func newWithDatastorer(namespace string, datastorer datastorer) (dsdb *DatastoreDB, err error) {
	dsdb = new(DatastoreDB)
	dsdb.datastorer = datastorer
	dsdb.namespace = namespace

	if err = dsdb.connect(); err != nil {
		return nil, err
	}

	if err = dsdb.testDB(); err != nil {
		dsdb.Close()
		return nil, err
	}

	return dsdb, nil
}

// testDB makes a lightweight call to the datastore to validate connectivity and credentials
func (dsdb *DatastoreDB) testDB() (err error) {
	var e userEntity
	err = dsdb.Get(context.Background(), dsdb.key(connectivityKind, "testConnectivity"), &e)

	if err != nil && err != datastore.ErrNoSuchEntity {
		return err
	}

	return nil
}

// key returns the key of an entity of the given kind and name in this instance's namespace
func (dsdb *DatastoreDB) key(kind string, name string) (k *datastore.Key) {
	k = datastore.NameKey(kind, name, nil)
	k.Namespace = dsdb.namespace

	return k
}

// query returns a new query on kind in this instance's namespace
func (dsdb *DatastoreDB) query(kind string) (q *datastore.Query) {
	return datastore.NewQuery(kind).Namespace(dsdb.namespace)
}

// withReconnect runs f and, if it fails with anything else than ErrNoSuchEntity, reconnects and tries
// one more time. Credentials can expire during the lifetime of a client so a new one picks up refreshed credentials
func (dsdb *DatastoreDB) withReconnect(f func() error) (err error) {
	err = f()
	if err == nil || err == datastore.ErrNoSuchEntity {
		return err
	}

	if cerr := dsdb.connect(); cerr != nil {
		return err
	}

	return f()
}

// ListMembers returns all channel members ordered by username
func (dsdb *DatastoreDB) ListMembers(ctx context.Context) (members []standup.Member, err error) {
	names, err := dsdb.scanKeyNames(ctx, memberKind)
	if err != nil {
		return nil, standup.StoreUnavailable("datastoredb.ListMembers", err)
	}

	members = make([]standup.Member, 0, len(names))
	for _, n := range names {
		members = append(members, standup.Member{Username: n})
	}

	return members, nil
}

// AddMember adds a channel member
func (dsdb *DatastoreDB) AddMember(ctx context.Context, username string) (err error) {
	err = dsdb.withReconnect(func() (err error) {
		_, err = dsdb.Put(ctx, dsdb.key(memberKind, username), &userEntity{Username: username})
		return err
	})

	if err != nil {
		return standup.StoreUnavailable("datastoredb.AddMember", errors.Wrapf(err, "failed to add member [%s]", username))
	}

	return nil
}

// ClearMembers deletes all channel members
func (dsdb *DatastoreDB) ClearMembers(ctx context.Context) (err error) {
	names, err := dsdb.scanKeyNames(ctx, memberKind)
	if err != nil {
		return standup.StoreUnavailable("datastoredb.ClearMembers", err)
	}

	if err = dsdb.deleteAll(ctx, memberKind, names); err != nil {
		return standup.StoreUnavailable("datastoredb.ClearMembers", err)
	}

	return nil
}

// CountMembers returns the number of channel members
func (dsdb *DatastoreDB) CountMembers(ctx context.Context) (count int, err error) {
	err = dsdb.withReconnect(func() (err error) {
		count, err = dsdb.Count(ctx, dsdb.query(memberKind).KeysOnly())
		return err
	})

	if err != nil {
		return 0, standup.StoreUnavailable("datastoredb.CountMembers", err)
	}

	return count, nil
}

// ReplaceMembers writes all usernames and then prunes the members that aren't part of the new set. Members of the
// new set are therefore never missing, even if pruning fails part way
func (dsdb *DatastoreDB) ReplaceMembers(ctx context.Context, usernames []string) (err error) {
	existing, err := dsdb.scanKeyNames(ctx, memberKind)
	if err != nil {
		return standup.StoreUnavailable("datastoredb.ReplaceMembers", err)
	}

	keep := make(map[string]bool)
	for start := 0; start < len(usernames); start += maxBatchSize {
		end := min(start+maxBatchSize, len(usernames))

		keys := make([]*datastore.Key, 0, end-start)
		entities := make([]*userEntity, 0, end-start)
		for _, u := range usernames[start:end] {
			keep[u] = true
			keys = append(keys, dsdb.key(memberKind, u))
			entities = append(entities, &userEntity{Username: u})
		}

		err = dsdb.withReconnect(func() (err error) {
			_, err = dsdb.PutMulti(ctx, keys, entities)
			return err
		})

		if err != nil {
			return standup.StoreUnavailable("datastoredb.ReplaceMembers", errors.Wrapf(err, "failed to write [%d] members", len(keys)))
		}
	}

	stale := make([]string, 0)
	for _, n := range existing {
		if !keep[n] {
			stale = append(stale, n)
		}
	}

	if err = dsdb.deleteAll(ctx, memberKind, stale); err != nil {
		return standup.StoreUnavailable("datastoredb.ReplaceMembers", err)
	}

	return nil
}

// ListUnsubscribed returns the usernames of all users who opted out
func (dsdb *DatastoreDB) ListUnsubscribed(ctx context.Context) (usernames []string, err error) {
	usernames, err = dsdb.scanKeyNames(ctx, unsubscribedKind)
	if err != nil {
		return nil, standup.StoreUnavailable("datastoredb.ListUnsubscribed", err)
	}

	return usernames, nil
}

// IsUnsubscribed returns true if the user opted out
func (dsdb *DatastoreDB) IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error) {
	err = dsdb.withReconnect(func() (err error) {
		var e userEntity
		return dsdb.Get(ctx, dsdb.key(unsubscribedKind, username), &e)
	})

	if err == datastore.ErrNoSuchEntity {
		return false, nil
	} else if err != nil {
		return false, standup.StoreUnavailable("datastoredb.IsUnsubscribed", err)
	}

	return true, nil
}

// OptOut marks a user as unsubscribed
func (dsdb *DatastoreDB) OptOut(ctx context.Context, username string) (err error) {
	err = dsdb.withReconnect(func() (err error) {
		_, err = dsdb.Put(ctx, dsdb.key(unsubscribedKind, username), &userEntity{Username: username})
		return err
	})

	if err != nil {
		return standup.StoreUnavailable("datastoredb.OptOut", errors.Wrapf(err, "failed to unsubscribe [%s]", username))
	}

	return nil
}

// OptIn removes a user from the unsubscribed users
func (dsdb *DatastoreDB) OptIn(ctx context.Context, username string) (err error) {
	err = dsdb.withReconnect(func() (err error) {
		return dsdb.Delete(ctx, dsdb.key(unsubscribedKind, username))
	})

	if err != nil {
		return standup.StoreUnavailable("datastoredb.OptIn", errors.Wrapf(err, "failed to subscribe [%s]", username))
	}

	return nil
}

// Insert stores a new standup record, replacing any record for the same username and date
func (dsdb *DatastoreDB) Insert(ctx context.Context, record standup.Record) (err error) {
	if err = dsdb.putRecord(ctx, record); err != nil {
		return standup.StoreUnavailable("datastoredb.Insert", err)
	}

	return nil
}

// Update replaces an existing standup record
func (dsdb *DatastoreDB) Update(ctx context.Context, record standup.Record) (err error) {
	if _, err = dsdb.FindByUserAndDate(ctx, record.Username, record.DatePosted); err != nil {
		return err
	}

	if err = dsdb.putRecord(ctx, record); err != nil {
		return standup.StoreUnavailable("datastoredb.Update", err)
	}

	return nil
}

// FindByDate returns all records posted on date ordered by team and then by username. Ordering is done
// in memory to avoid requiring a composite index
func (dsdb *DatastoreDB) FindByDate(ctx context.Context, date string) (records []standup.Record, err error) {
	records, err = dsdb.queryRecords(ctx, dsdb.query(standupKind).FilterField("DatePosted", "=", date))
	if err != nil {
		return nil, standup.StoreUnavailable("datastoredb.FindByDate", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Team != records[j].Team {
			return records[i].Team < records[j].Team
		}

		return records[i].Username < records[j].Username
	})

	return records, nil
}

// FindByUserAndDate returns the record posted by username on date
func (dsdb *DatastoreDB) FindByUserAndDate(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	var e standupEntity
	err = dsdb.withReconnect(func() (err error) {
		return dsdb.Get(ctx, dsdb.key(standupKind, standupKeyName(date, username)), &e)
	})

	if err == datastore.ErrNoSuchEntity {
		return nil, standup.NotFound("datastoredb.FindByUserAndDate", "no standup for [%s] on [%s]", username, date)
	} else if err != nil {
		return nil, standup.StoreUnavailable("datastoredb.FindByUserAndDate", err)
	}

	r := e.record()
	return &r, nil
}

// FindUsersSubmittedByDate returns the usernames of all users who posted a standup on date
func (dsdb *DatastoreDB) FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error) {
	records, err := dsdb.FindByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	usernames = make([]string, 0, len(records))
	for _, r := range records {
		usernames = append(usernames, r.Username)
	}

	return usernames, nil
}

// FindHistory returns the records of a user posted between fromDate and toDate (both inclusive) ordered by date. Only
// the username is filtered by the datastore to avoid requiring a composite index
func (dsdb *DatastoreDB) FindHistory(ctx context.Context, username string, fromDate string, toDate string) (records []standup.Record, err error) {
	all, err := dsdb.queryRecords(ctx, dsdb.query(standupKind).FilterField("Username", "=", username))
	if err != nil {
		return nil, standup.StoreUnavailable("datastoredb.FindHistory", err)
	}

	records = make([]standup.Record, 0)
	for _, r := range all {
		if r.DatePosted >= fromDate && r.DatePosted <= toDate {
			records = append(records, r)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DatePosted < records[j].DatePosted
	})

	return records, nil
}

// Close closes the underlying datastore client
func (dsdb *DatastoreDB) Close() (err error) {
	return dsdb.datastorer.Close()
}

func (dsdb *DatastoreDB) putRecord(ctx context.Context, record standup.Record) (err error) {
	err = dsdb.withReconnect(func() (err error) {
		_, err = dsdb.Put(ctx, dsdb.key(standupKind, standupKeyName(record.DatePosted, record.Username)), newStandupEntity(record))
		return err
	})

	return errors.Wrapf(err, "failed to write standup [%s]", record)
}

func (dsdb *DatastoreDB) queryRecords(ctx context.Context, q *datastore.Query) (records []standup.Record, err error) {
	var entities []*standupEntity
	err = dsdb.withReconnect(func() (err error) {
		entities = nil
		_, err = dsdb.GetAll(ctx, q, &entities)
		return err
	})

	if err != nil {
		return nil, err
	}

	records = make([]standup.Record, 0, len(entities))
	for _, e := range entities {
		records = append(records, e.record())
	}

	return records, nil
}

// scanKeyNames returns the key names of all entities of a kind, ordered by name
func (dsdb *DatastoreDB) scanKeyNames(ctx context.Context, kind string) (names []string, err error) {
	var keys []*datastore.Key
	err = dsdb.withReconnect(func() (err error) {
		keys, err = dsdb.GetAll(ctx, dsdb.query(kind).KeysOnly(), nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	names = make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.Name)
	}

	sort.Strings(names)
	return names, nil
}

// deleteAll deletes all entities of a kind with the given names in batches
func (dsdb *DatastoreDB) deleteAll(ctx context.Context, kind string, names []string) (err error) {
	for start := 0; start < len(names); start += maxBatchSize {
		end := min(start+maxBatchSize, len(names))

		keys := make([]*datastore.Key, 0, end-start)
		for _, n := range names[start:end] {
			keys = append(keys, dsdb.key(kind, n))
		}

		err = dsdb.withReconnect(func() (err error) {
			return dsdb.DeleteMulti(ctx, keys)
		})

		if err != nil {
			return errors.Wrapf(err, "failed to delete [%d] entities of kind [%s]", len(keys), kind)
		}
	}

	return nil
}

func standupKeyName(date string, username string) string {
	return fmt.Sprintf("%s/%s", date, username)
}
