/*
Package inmemorydb provides an implementation of github.com/alexandre-normand/standupscot/store's Storer interface
that keeps channel members and unsubscribed users in memory while relying on a wrapped Storer for actual persistence.

The main use-case for the inmemorydb is to shield the real Storer implementation from receiving too many calls
as the late-submitter resolution reads the full membership and opt-out lists on every prompt and reminder. Standup
records aren't cached since they grow unbounded over time.

Example code:

	import (
		"github.com/alexandre-normand/standupscot/store"
		"github.com/alexandre-normand/standupscot/store/inmemorydb"
	)

	func main() {
		// Create your persistent storer first
		persistentStorer, err := store.NewLevelDB("standupscot", "~/standupscot-data")
		if err != nil {
			log.Fatalf("Opening db failed: %s", err.Error())
		}
		defer persistentStorer.Close()

		// Create the inmemorydb
		storer, err := inmemorydb.New(persistentStorer)
		if err != nil {
			log.Fatalf("Opening creating in-memory db wrapper: %s", err.Error())
		}

		// Run your instance
		...
	}
*/
package inmemorydb
