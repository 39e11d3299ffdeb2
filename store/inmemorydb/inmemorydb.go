package inmemorydb

import (
	"context"
	"sort"
	"sync"

	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/store"
)

// InMemoryDB implements store.Storer and keeps a copy of channel members and unsubscribed users
// in memory while writing through to the wrapped (persistent) Storer. Standup records are
// not cached and are read from and written to the persistent Storer directly
type InMemoryDB struct {
	persistentStorer store.Storer

	sync.RWMutex
	members      map[string]bool
	unsubscribed map[string]bool
}

// New returns a new instance of InMemoryDB wrapping the persistent Storer.
// Note that instantiation might have some latency induced by the initial load
// of members and unsubscribed users from the persistentStorer
func New(storer store.Storer) (imdb *InMemoryDB, err error) {
	imdb = new(InMemoryDB)
	imdb.persistentStorer = storer

	ctx := context.Background()
	members, err := storer.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	unsubscribed, err := storer.ListUnsubscribed(ctx)
	if err != nil {
		return nil, err
	}

	imdb.members = make(map[string]bool)
	for _, m := range members {
		imdb.members[m.Username] = true
	}

	imdb.unsubscribed = make(map[string]bool)
	for _, u := range unsubscribed {
		imdb.unsubscribed[u] = true
	}

	return imdb, nil
}

// ListMembers returns a copy of the in-memory members, ordered by username, without querying
// the persistent storer
func (imdb *InMemoryDB) ListMembers(ctx context.Context) (members []standup.Member, err error) {
	imdb.RLock()
	defer imdb.RUnlock()

	members = make([]standup.Member, 0, len(imdb.members))
	for _, u := range sortedKeys(imdb.members) {
		members = append(members, standup.Member{Username: u})
	}

	return members, nil
}

// AddMember adds the member to the persistent storer first and then to memory
func (imdb *InMemoryDB) AddMember(ctx context.Context, username string) (err error) {
	imdb.Lock()
	defer imdb.Unlock()

	if err = imdb.persistentStorer.AddMember(ctx, username); err != nil {
		return err
	}

	imdb.members[username] = true
	return nil
}

// ClearMembers deletes all members from the persistent storer first and then from memory
func (imdb *InMemoryDB) ClearMembers(ctx context.Context) (err error) {
	imdb.Lock()
	defer imdb.Unlock()

	if err = imdb.persistentStorer.ClearMembers(ctx); err != nil {
		return err
	}

	imdb.members = make(map[string]bool)
	return nil
}

// CountMembers returns the number of in-memory members
func (imdb *InMemoryDB) CountMembers(ctx context.Context) (count int, err error) {
	imdb.RLock()
	defer imdb.RUnlock()

	return len(imdb.members), nil
}

// ReplaceMembers replaces all members. If the persistent storer is a store.MembershipReplacer, the
// replacement is delegated to it. Otherwise, members are cleared and added back one by one. The in-memory
// copy is only swapped once the persistent storer accepted all of it
func (imdb *InMemoryDB) ReplaceMembers(ctx context.Context, usernames []string) (err error) {
	imdb.Lock()
	defer imdb.Unlock()

	if r, ok := imdb.persistentStorer.(store.MembershipReplacer); ok {
		err = r.ReplaceMembers(ctx, usernames)
	} else {
		err = imdb.clearAndAdd(ctx, usernames)
	}

	if err != nil {
		return err
	}

	imdb.members = make(map[string]bool)
	for _, u := range usernames {
		imdb.members[u] = true
	}

	return nil
}

func (imdb *InMemoryDB) clearAndAdd(ctx context.Context, usernames []string) (err error) {
	if err = imdb.persistentStorer.ClearMembers(ctx); err != nil {
		return err
	}

	for _, u := range usernames {
		if err = imdb.persistentStorer.AddMember(ctx, u); err != nil {
			return err
		}
	}

	return nil
}

// ListUnsubscribed returns a copy of the in-memory unsubscribed users ordered by username
func (imdb *InMemoryDB) ListUnsubscribed(ctx context.Context) (usernames []string, err error) {
	imdb.RLock()
	defer imdb.RUnlock()

	return sortedKeys(imdb.unsubscribed), nil
}

// IsUnsubscribed returns true if the user opted out
func (imdb *InMemoryDB) IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error) {
	imdb.RLock()
	defer imdb.RUnlock()

	return imdb.unsubscribed[username], nil
}

// OptOut persists the opt-out first and then keeps it in memory
func (imdb *InMemoryDB) OptOut(ctx context.Context, username string) (err error) {
	imdb.Lock()
	defer imdb.Unlock()

	if err = imdb.persistentStorer.OptOut(ctx, username); err != nil {
		return err
	}

	imdb.unsubscribed[username] = true
	return nil
}

// OptIn propagates the opt-in to the persistent storage first and then deletes it from memory
func (imdb *InMemoryDB) OptIn(ctx context.Context, username string) (err error) {
	imdb.Lock()
	defer imdb.Unlock()

	if err = imdb.persistentStorer.OptIn(ctx, username); err != nil {
		return err
	}

	delete(imdb.unsubscribed, username)
	return nil
}

// Insert delegates to the persistent storer
func (imdb *InMemoryDB) Insert(ctx context.Context, record standup.Record) (err error) {
	return imdb.persistentStorer.Insert(ctx, record)
}

// Update delegates to the persistent storer
func (imdb *InMemoryDB) Update(ctx context.Context, record standup.Record) (err error) {
	return imdb.persistentStorer.Update(ctx, record)
}

// FindByDate delegates to the persistent storer
func (imdb *InMemoryDB) FindByDate(ctx context.Context, date string) (records []standup.Record, err error) {
	return imdb.persistentStorer.FindByDate(ctx, date)
}

// FindByUserAndDate delegates to the persistent storer
func (imdb *InMemoryDB) FindByUserAndDate(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	return imdb.persistentStorer.FindByUserAndDate(ctx, username, date)
}

// FindUsersSubmittedByDate delegates to the persistent storer
func (imdb *InMemoryDB) FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error) {
	return imdb.persistentStorer.FindUsersSubmittedByDate(ctx, date)
}

// FindHistory delegates to the persistent storer
func (imdb *InMemoryDB) FindHistory(ctx context.Context, username string, fromDate string, toDate string) (records []standup.Record, err error) {
	return imdb.persistentStorer.FindHistory(ctx, username, fromDate, toDate)
}

// Close closes the underlying storer
func (imdb *InMemoryDB) Close() (err error) {
	return imdb.persistentStorer.Close()
}

func sortedKeys(m map[string]bool) (keys []string) {
	keys = make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}
