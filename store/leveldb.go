package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexandre-normand/standupscot/standup"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes isolating each kind of entry in the database
const (
	memberPrefix       = "member/"
	unsubscribedPrefix = "unsubscribed/"
	standupPrefix      = "standup/"
)

// LevelDB holds a datastore name and its leveldb instance. It implements Storer
type LevelDB struct {
	Name     string
	database *leveldb.DB
}

// NewLevelDB instantiates and open a new LevelDB instance backed by a leveldb database. If the
// leveldb database doesn't exist, one is created
func NewLevelDB(name string, storagePath string) (ldb *LevelDB, err error) {
	// Expand '~' as the full home directory path if appropriate
	path, err := homedir.Expand(storagePath)
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(path, name)
	db, err := leveldb.OpenFile(fullPath, nil)

	if _, ok := err.(*leveldberrors.ErrCorrupted); ok {
		return nil, errors.Wrap(err, fmt.Sprintf("leveldb corrupted. Consider deleting [%s] and restarting if you don't mind losing data", fullPath))
	} else if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to open file with path [%s]", fullPath))
	}

	return &LevelDB{name, db}, nil
}

// Close closes the LevelDB
func (ldb *LevelDB) Close() (err error) {
	return ldb.database.Close()
}

// ListMembers returns all channel members ordered by username
func (ldb *LevelDB) ListMembers(ctx context.Context) (members []standup.Member, err error) {
	usernames, err := ldb.scanNames(memberPrefix)
	if err != nil {
		return nil, standup.StoreUnavailable("leveldb.ListMembers", err)
	}

	members = make([]standup.Member, 0, len(usernames))
	for _, u := range usernames {
		members = append(members, standup.Member{Username: u})
	}

	return members, nil
}

// AddMember adds a channel member
func (ldb *LevelDB) AddMember(ctx context.Context, username string) (err error) {
	if err = ldb.database.Put([]byte(memberPrefix+username), nil, nil); err != nil {
		return standup.StoreUnavailable("leveldb.AddMember", errors.Wrapf(err, "failed to add member [%s]", username))
	}

	return nil
}

// ClearMembers deletes all channel members in a single batch
func (ldb *LevelDB) ClearMembers(ctx context.Context) (err error) {
	return ldb.ReplaceMembers(ctx, nil)
}

// CountMembers returns the number of channel members
func (ldb *LevelDB) CountMembers(ctx context.Context) (count int, err error) {
	usernames, err := ldb.scanNames(memberPrefix)
	if err != nil {
		return 0, standup.StoreUnavailable("leveldb.CountMembers", err)
	}

	return len(usernames), nil
}

// ReplaceMembers atomically replaces the set of channel members with usernames
func (ldb *LevelDB) ReplaceMembers(ctx context.Context, usernames []string) (err error) {
	existing, err := ldb.scanNames(memberPrefix)
	if err != nil {
		return standup.StoreUnavailable("leveldb.ReplaceMembers", err)
	}

	batch := new(leveldb.Batch)
	for _, u := range existing {
		batch.Delete([]byte(memberPrefix + u))
	}

	for _, u := range usernames {
		batch.Put([]byte(memberPrefix+u), nil)
	}

	if err = ldb.database.Write(batch, nil); err != nil {
		return standup.StoreUnavailable("leveldb.ReplaceMembers", errors.Wrapf(err, "failed to write batch of [%d] members", len(usernames)))
	}

	return nil
}

// ListUnsubscribed returns the usernames of all users who opted out
func (ldb *LevelDB) ListUnsubscribed(ctx context.Context) (usernames []string, err error) {
	usernames, err = ldb.scanNames(unsubscribedPrefix)
	if err != nil {
		return nil, standup.StoreUnavailable("leveldb.ListUnsubscribed", err)
	}

	return usernames, nil
}

// IsUnsubscribed returns true if the user opted out
func (ldb *LevelDB) IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error) {
	unsubscribed, err = ldb.database.Has([]byte(unsubscribedPrefix+username), nil)
	if err != nil {
		return false, standup.StoreUnavailable("leveldb.IsUnsubscribed", err)
	}

	return unsubscribed, nil
}

// OptOut marks a user as unsubscribed
func (ldb *LevelDB) OptOut(ctx context.Context, username string) (err error) {
	if err = ldb.database.Put([]byte(unsubscribedPrefix+username), nil, nil); err != nil {
		return standup.StoreUnavailable("leveldb.OptOut", errors.Wrapf(err, "failed to unsubscribe [%s]", username))
	}

	return nil
}

// OptIn removes a user from the unsubscribed users. Opting in a user who never opted out is a no-op
func (ldb *LevelDB) OptIn(ctx context.Context, username string) (err error) {
	if err = ldb.database.Delete([]byte(unsubscribedPrefix+username), nil); err != nil {
		return standup.StoreUnavailable("leveldb.OptIn", errors.Wrapf(err, "failed to subscribe [%s]", username))
	}

	return nil
}

// Insert stores a new standup record, replacing any record for the same username and date
func (ldb *LevelDB) Insert(ctx context.Context, record standup.Record) (err error) {
	return ldb.putRecord("leveldb.Insert", record)
}

// Update replaces an existing standup record
func (ldb *LevelDB) Update(ctx context.Context, record standup.Record) (err error) {
	exists, err := ldb.database.Has(standupKey(record.DatePosted, record.Username), nil)
	if err != nil {
		return standup.StoreUnavailable("leveldb.Update", err)
	}

	if !exists {
		return standup.NotFound("leveldb.Update", "no standup for [%s] on [%s]", record.Username, record.DatePosted)
	}

	return ldb.putRecord("leveldb.Update", record)
}

// FindByDate returns all records posted on date ordered by team and then by username
func (ldb *LevelDB) FindByDate(ctx context.Context, date string) (records []standup.Record, err error) {
	records, err = ldb.scanRecords(util.BytesPrefix([]byte(standupPrefix + date + "/")))
	if err != nil {
		return nil, standup.StoreUnavailable("leveldb.FindByDate", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Team < records[j].Team
	})

	return records, nil
}

// FindByUserAndDate returns the record posted by username on date
func (ldb *LevelDB) FindByUserAndDate(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	val, err := ldb.database.Get(standupKey(date, username), nil)
	if err == leveldb.ErrNotFound {
		return nil, standup.NotFound("leveldb.FindByUserAndDate", "no standup for [%s] on [%s]", username, date)
	} else if err != nil {
		return nil, standup.StoreUnavailable("leveldb.FindByUserAndDate", err)
	}

	record = new(standup.Record)
	if err = json.Unmarshal(val, record); err != nil {
		return nil, standup.StoreUnavailable("leveldb.FindByUserAndDate", errors.Wrapf(err, "corrupted standup for [%s] on [%s]", username, date))
	}

	return record, nil
}

// FindUsersSubmittedByDate returns the usernames of all users who posted a standup on date
func (ldb *LevelDB) FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error) {
	usernames, err = ldb.scanNames(standupPrefix + date + "/")
	if err != nil {
		return nil, standup.StoreUnavailable("leveldb.FindUsersSubmittedByDate", err)
	}

	return usernames, nil
}

// FindHistory returns the records of a user posted between fromDate and toDate (both inclusive) ordered by date
func (ldb *LevelDB) FindHistory(ctx context.Context, username string, fromDate string, toDate string) (records []standup.Record, err error) {
	// The range limit is exclusive so we stop right after the last key prefix of toDate
	r := &util.Range{Start: []byte(standupPrefix + fromDate + "/"), Limit: []byte(standupPrefix + toDate + "0")}

	all, err := ldb.scanRecords(r)
	if err != nil {
		return nil, standup.StoreUnavailable("leveldb.FindHistory", err)
	}

	records = make([]standup.Record, 0)
	for _, rec := range all {
		if rec.Username == username {
			records = append(records, rec)
		}
	}

	return records, nil
}

// putRecord encodes and writes a record at its key
func (ldb *LevelDB) putRecord(op string, record standup.Record) (err error) {
	val, err := json.Marshal(record)
	if err != nil {
		return standup.StoreUnavailable(op, err)
	}

	if err = ldb.database.Put(standupKey(record.DatePosted, record.Username), val, nil); err != nil {
		return standup.StoreUnavailable(op, errors.Wrapf(err, "failed to write standup [%s]", record))
	}

	return nil
}

// scanNames returns the key suffixes of all entries with the given prefix in key order
func (ldb *LevelDB) scanNames(prefix string) (names []string, err error) {
	names = make([]string, 0)

	iter := ldb.database.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for iter.Next() {
		names = append(names, strings.TrimPrefix(string(iter.Key()), prefix))
	}

	iter.Release()
	return names, iter.Error()
}

// scanRecords decodes all standup records in range r in key order
func (ldb *LevelDB) scanRecords(r *util.Range) (records []standup.Record, err error) {
	records = make([]standup.Record, 0)

	iter := ldb.database.NewIterator(r, nil)
	defer iter.Release()

	for iter.Next() {
		var rec standup.Record
		if err = json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, errors.Wrapf(err, "corrupted standup at key [%s]", iter.Key())
		}

		records = append(records, rec)
	}

	return records, iter.Error()
}

// standupKey returns the key of the standup posted by username on date. Dates come first so that
// records for a day are contiguous
func standupKey(date string, username string) []byte {
	return []byte(standupPrefix + date + "/" + username)
}
