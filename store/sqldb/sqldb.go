// Package sqldb provides an implementation of github.com/alexandre-normand/standupscot/store's Storer interface
// backed by a sql database through sqlx. Postgres (lib/pq) is the production target but the queries stay
// portable enough to run on sqlite
package sqldb

import (
	"context"
	"database/sql"

	"github.com/alexandre-normand/standupscot/standup"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS channel_members (
		username TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS unsubscribed_users (
		username TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS standups (
		username TEXT NOT NULL,
		team TEXT NOT NULL,
		date_posted TEXT NOT NULL,
		standup_today TEXT NOT NULL,
		standup_previous TEXT NULL,
		blockers TEXT NULL,
		PRIMARY KEY (username, date_posted)
	)`,
}

const recordColumns = "username, team, date_posted, standup_today, standup_previous, blockers"

// SQLDB implements store.Storer on top of a sql database
type SQLDB struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
	trm    *manager.Manager
}

// New connects to the database identified by driverName and dsn (i.e. "postgres" and a postgres connection url) and
// returns a new SQLDB. Tables are created if they don't exist
func New(driverName string, dsn string) (sdb *SQLDB, err error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to [%s] database", driverName)
	}

	sdb, err = NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return sdb, nil
}

// NewWithDB returns a new SQLDB using an already opened database. Tables are created if they don't exist
func NewWithDB(db *sqlx.DB) (sdb *SQLDB, err error) {
	sdb = &SQLDB{db: db, getter: trmsqlx.DefaultCtxGetter, trm: manager.Must(trmsqlx.NewDefaultFactory(db))}

	for _, stmt := range schema {
		if _, err = db.Exec(stmt); err != nil {
			return nil, errors.Wrap(err, "failed to create schema")
		}
	}

	return sdb, nil
}

// Close closes the database
func (sdb *SQLDB) Close() (err error) {
	return sdb.db.Close()
}

// tr returns the transaction attached to ctx or the database itself if there's none
func (sdb *SQLDB) tr(ctx context.Context) trmsqlx.Tr {
	return sdb.getter.DefaultTrOrDB(ctx, sdb.db)
}

// ListMembers returns all channel members ordered by username
func (sdb *SQLDB) ListMembers(ctx context.Context) (members []standup.Member, err error) {
	const op = "sqldb.ListMembers"

	members = make([]standup.Member, 0)
	if err = sdb.tr(ctx).SelectContext(ctx, &members, "SELECT username FROM channel_members ORDER BY username"); err != nil {
		return nil, standup.StoreUnavailable(op, err)
	}

	return members, nil
}

// AddMember adds a channel member. Adding an existing member is a no-op
func (sdb *SQLDB) AddMember(ctx context.Context, username string) (err error) {
	const op = "sqldb.AddMember"

	query := sdb.db.Rebind("INSERT INTO channel_members (username) VALUES (?) ON CONFLICT (username) DO NOTHING")
	if _, err = sdb.tr(ctx).ExecContext(ctx, query, username); err != nil {
		return standup.StoreUnavailable(op, errors.Wrapf(err, "failed to add member [%s]", username))
	}

	return nil
}

// ClearMembers deletes all channel members
func (sdb *SQLDB) ClearMembers(ctx context.Context) (err error) {
	const op = "sqldb.ClearMembers"

	if _, err = sdb.tr(ctx).ExecContext(ctx, "DELETE FROM channel_members"); err != nil {
		return standup.StoreUnavailable(op, err)
	}

	return nil
}

// CountMembers returns the number of channel members
func (sdb *SQLDB) CountMembers(ctx context.Context) (count int, err error) {
	const op = "sqldb.CountMembers"

	if err = sdb.tr(ctx).GetContext(ctx, &count, "SELECT COUNT(*) FROM channel_members"); err != nil {
		return 0, standup.StoreUnavailable(op, err)
	}

	return count, nil
}

// ReplaceMembers clears and adds all usernames in a single transaction
func (sdb *SQLDB) ReplaceMembers(ctx context.Context, usernames []string) (err error) {
	return sdb.trm.Do(ctx, func(ctx context.Context) (err error) {
		if err = sdb.ClearMembers(ctx); err != nil {
			return err
		}

		for _, u := range usernames {
			if err = sdb.AddMember(ctx, u); err != nil {
				return err
			}
		}

		return nil
	})
}

// ListUnsubscribed returns the usernames of all users who opted out ordered by username
func (sdb *SQLDB) ListUnsubscribed(ctx context.Context) (usernames []string, err error) {
	const op = "sqldb.ListUnsubscribed"

	usernames = make([]string, 0)
	if err = sdb.tr(ctx).SelectContext(ctx, &usernames, "SELECT username FROM unsubscribed_users ORDER BY username"); err != nil {
		return nil, standup.StoreUnavailable(op, err)
	}

	return usernames, nil
}

// IsUnsubscribed returns true if the user opted out
func (sdb *SQLDB) IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error) {
	const op = "sqldb.IsUnsubscribed"

	var count int
	query := sdb.db.Rebind("SELECT COUNT(*) FROM unsubscribed_users WHERE username = ?")
	if err = sdb.tr(ctx).GetContext(ctx, &count, query, username); err != nil {
		return false, standup.StoreUnavailable(op, err)
	}

	return count > 0, nil
}

// OptOut marks a user as unsubscribed
func (sdb *SQLDB) OptOut(ctx context.Context, username string) (err error) {
	const op = "sqldb.OptOut"

	query := sdb.db.Rebind("INSERT INTO unsubscribed_users (username) VALUES (?) ON CONFLICT (username) DO NOTHING")
	if _, err = sdb.tr(ctx).ExecContext(ctx, query, username); err != nil {
		return standup.StoreUnavailable(op, errors.Wrapf(err, "failed to unsubscribe [%s]", username))
	}

	return nil
}

// OptIn removes a user from the unsubscribed users
func (sdb *SQLDB) OptIn(ctx context.Context, username string) (err error) {
	const op = "sqldb.OptIn"

	query := sdb.db.Rebind("DELETE FROM unsubscribed_users WHERE username = ?")
	if _, err = sdb.tr(ctx).ExecContext(ctx, query, username); err != nil {
		return standup.StoreUnavailable(op, errors.Wrapf(err, "failed to subscribe [%s]", username))
	}

	return nil
}

// Insert stores a new standup record, replacing any record for the same username and date
func (sdb *SQLDB) Insert(ctx context.Context, record standup.Record) (err error) {
	const op = "sqldb.Insert"

	query := sdb.db.Rebind(`
		INSERT INTO standups (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, date_posted) DO UPDATE SET
			team = EXCLUDED.team,
			standup_today = EXCLUDED.standup_today,
			standup_previous = EXCLUDED.standup_previous,
			blockers = EXCLUDED.blockers`)

	_, err = sdb.tr(ctx).ExecContext(ctx, query, record.Username, record.Team, record.DatePosted, record.Today, record.Previous, record.Blockers)
	if err != nil {
		return standup.StoreUnavailable(op, errors.Wrapf(err, "failed to insert standup [%s]", record))
	}

	return nil
}

// Update replaces an existing standup record
func (sdb *SQLDB) Update(ctx context.Context, record standup.Record) (err error) {
	const op = "sqldb.Update"

	query := sdb.db.Rebind(`
		UPDATE standups SET team = ?, standup_today = ?, standup_previous = ?, blockers = ?
		WHERE username = ? AND date_posted = ?`)

	res, err := sdb.tr(ctx).ExecContext(ctx, query, record.Team, record.Today, record.Previous, record.Blockers, record.Username, record.DatePosted)
	if err != nil {
		return standup.StoreUnavailable(op, errors.Wrapf(err, "failed to update standup [%s]", record))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return standup.StoreUnavailable(op, err)
	}

	if affected == 0 {
		return standup.NotFound(op, "no standup for [%s] on [%s]", record.Username, record.DatePosted)
	}

	return nil
}

// FindByDate returns all records posted on date ordered by team and then by username
func (sdb *SQLDB) FindByDate(ctx context.Context, date string) (records []standup.Record, err error) {
	const op = "sqldb.FindByDate"

	query := sdb.db.Rebind("SELECT " + recordColumns + " FROM standups WHERE date_posted = ? ORDER BY team, username")

	records = make([]standup.Record, 0)
	if err = sdb.tr(ctx).SelectContext(ctx, &records, query, date); err != nil {
		return nil, standup.StoreUnavailable(op, err)
	}

	return records, nil
}

// FindByUserAndDate returns the record posted by username on date
func (sdb *SQLDB) FindByUserAndDate(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	const op = "sqldb.FindByUserAndDate"

	query := sdb.db.Rebind("SELECT " + recordColumns + " FROM standups WHERE username = ? AND date_posted = ?")

	record = new(standup.Record)
	err = sdb.tr(ctx).GetContext(ctx, record, query, username, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, standup.NotFound(op, "no standup for [%s] on [%s]", username, date)
	} else if err != nil {
		return nil, standup.StoreUnavailable(op, err)
	}

	return record, nil
}

// FindUsersSubmittedByDate returns the usernames of all users who posted a standup on date
func (sdb *SQLDB) FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error) {
	const op = "sqldb.FindUsersSubmittedByDate"

	query := sdb.db.Rebind("SELECT username FROM standups WHERE date_posted = ? ORDER BY username")

	usernames = make([]string, 0)
	if err = sdb.tr(ctx).SelectContext(ctx, &usernames, query, date); err != nil {
		return nil, standup.StoreUnavailable(op, err)
	}

	return usernames, nil
}

// FindHistory returns the records of a user posted between fromDate and toDate (both inclusive) ordered by date
func (sdb *SQLDB) FindHistory(ctx context.Context, username string, fromDate string, toDate string) (records []standup.Record, err error) {
	const op = "sqldb.FindHistory"

	query := sdb.db.Rebind(`
		SELECT ` + recordColumns + ` FROM standups
		WHERE username = ? AND date_posted >= ? AND date_posted <= ?
		ORDER BY date_posted`)

	records = make([]standup.Record, 0)
	if err = sdb.tr(ctx).SelectContext(ctx, &records, query, username, fromDate, toDate); err != nil {
		return nil, standup.StoreUnavailable(op, err)
	}

	return records, nil
}
