/*
Package datastoredb provides an implementation of github.com/alexandre-normand/standupscot/store's Storer interface
backed by the Google Cloud Datastore.

Requirements for the Google Cloud Datastore integration:
  - A valid project id with datastore mode enabled
  - Google Cloud Credentials (typically in the form of a json file with credentials from https://console.cloud.google.com/apis/credentials/serviceaccountkey)

Entities are stored under the datastore namespace given at creation with one kind per type of data
(ChannelMember, UnsubscribedUser and Standup).

Example code:

	import (
		"github.com/alexandre-normand/standupscot/store/datastoredb"
		"google.golang.org/api/option"
	)

	func main() {
		// The first argument is the datastore namespace.
		// The second argument is the gcloud project id which is what you'll have created with your gcloud service account
		// The third argument are client options which are most useful for providing credentials either in the form of a pre-parsed json file or
		// most commonly, the path to a json credentials file
		storer, err := datastoredb.New("standupscot", "youppi", option.WithCredentialsFile(*gcloudCredentialsFile))
		if err != nil {
			log.Fatalf("Opening db failed: %s", err.Error())
		}
		defer storer.Close()

		// Run your instance
		...
	}
*/
package datastoredb
