// Package config holds the configuration keys, defaults and helpers used to configure a standupscot instance.
// Configuration is loaded with viper from a file and from the environment (prefixed with STANDUPSCOT_)
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alexandre-normand/standupscot/schedule"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	TokenKey                  = "token"                  // Slack bot token, string value
	SigningSecretKey          = "signingSecret"          // Slack signing secret used to verify incoming requests, string value. Verification is skipped when empty
	ChannelIDKey              = "channelID"              // Id of the monitored channel, string value. Defaults to the first channel the bot is a member of
	DebugKey                  = "debug"                  // Debug mode, boolean value
	TimeLocationKey           = "timeLocation"           // Time location used to compute the standup date and run schedules, string value (i.e. "America/Los_Angeles")
	ListenAddressKey          = "listenAddress"          // Address the http server listens on, string value
	PostIndividualStandupsKey = "postIndividualStandups" // Post every saved standup to the channel as it's submitted, boolean value
	SkipWeekendsKey           = "skipWeekends"           // Skip prompts, reminders and digests on saturdays and sundays, boolean value
	DMChannelCacheSizeKey     = "dmChannelCacheSize"     // The number of entries to keep in the user to direct message channel cache, int value. 0 disables caching
	MessagesPerSecondKey      = "messagesPerSecond"      // Rate at which direct messages are sent out, float value
	MessageBurstKey           = "messageBurst"           // Number of direct messages that can be sent in a burst, int value
	StorageKindKey            = "storage.kind"           // Storage backend, one of "leveldb", "datastore", "sql"
	StorageInMemoryCacheKey   = "storage.inMemoryCache"  // Keep members and unsubscribed users in memory in front of the storage backend, boolean value
	StoragePathKey            = "storage.path"           // Directory of the leveldb database, string value. '~' is expanded
	StorageSQLDriverKey       = "storage.sqlDriver"      // Database/sql driver name for the sql storage ("postgres" or "sqlite")
	StorageDSNKey             = "storage.dsn"            // Data source name for the sql storage
	StorageGCloudProjectKey   = "storage.gcloudProjectID"
	StorageGCloudCredsKey     = "storage.gcloudCredentialsFile"
	StorageNamespaceKey       = "storage.namespace" // Name of the leveldb database or datastore namespace
	SchedulesKey              = "schedules"
)

// Schedule names
const (
	RefreshMembersSchedule = "refreshMembers"
	PromptSchedule         = "prompt"
	ReminderSchedule       = "reminder"
	DigestSchedule         = "digest"
)

// Storage kinds
const (
	LevelDBStorage   = "leveldb"
	DatastoreStorage = "datastore"
	SQLStorage       = "sql"
)

const (
	envPrefix          = "STANDUPSCOT"
	envKey             = "STANDUPSCOT_ENV"
	production         = "production"
	tokenEnvFallback   = "SLACK_ACCESS_TOKEN"
	defaultEnvFilename = ".env"
)

// NewViperWithDefaults creates a new viper instance with defaults pre-set for all standupscot keys
func NewViperWithDefaults() (v *viper.Viper) {
	v = viper.New()

	return LayerConfigWithDefaults(v)
}

// LayerConfigWithDefaults layers the standupscot defaults under the values already present in v
func LayerConfigWithDefaults(v *viper.Viper) (layeredConfig *viper.Viper) {
	v.SetDefault(DebugKey, false)
	v.SetDefault(TimeLocationKey, "Local")
	v.SetDefault(ListenAddressKey, ":8080")
	v.SetDefault(PostIndividualStandupsKey, false)
	v.SetDefault(SkipWeekendsKey, true)
	v.SetDefault(DMChannelCacheSizeKey, 500)
	v.SetDefault(MessagesPerSecondKey, 1.0)
	v.SetDefault(MessageBurstKey, 3)
	v.SetDefault(StorageKindKey, LevelDBStorage)
	v.SetDefault(StorageInMemoryCacheKey, true)
	v.SetDefault(StoragePathKey, "~/.standupscot")
	v.SetDefault(StorageSQLDriverKey, "postgres")
	v.SetDefault(StorageNamespaceKey, "standupscot")

	for name, sd := range DefaultSchedules() {
		prefix := fmt.Sprintf("%s.%s.", SchedulesKey, name)
		v.SetDefault(prefix+"interval", sd.Interval)
		v.SetDefault(prefix+"unit", sd.Unit)
		v.SetDefault(prefix+"weekday", sd.Weekday)
		v.SetDefault(prefix+"atTime", sd.AtTime)
	}

	return v
}

// DefaultSchedules returns the default schedule of each standupscot job
func DefaultSchedules() (schedules map[string]schedule.Definition) {
	return map[string]schedule.Definition{
		RefreshMembersSchedule: {Interval: 1, Unit: schedule.Hours},
		PromptSchedule:         {Interval: 1, Unit: schedule.Days, AtTime: "09:00"},
		ReminderSchedule:       {Interval: 1, Unit: schedule.Days, AtTime: "11:30"},
		DigestSchedule:         {Interval: 1, Unit: schedule.Days, AtTime: "14:30"},
	}
}

// BindEnv makes every key overridable by an environment variable prefixed with STANDUPSCOT_ (nested keys
// use '_' as a separator). The token can also be set with SLACK_ACCESS_TOKEN
func BindEnv(v *viper.Viper) (err error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v.BindEnv(TokenKey, envPrefix+"_"+strings.ToUpper(TokenKey), tokenEnvFallback)
}

// LoadDotEnv loads environment variables from a .env file (or the given filenames) unless running in production.
// A missing file is fine but a malformed one is an error
func LoadDotEnv(filenames ...string) (err error) {
	if os.Getenv(envKey) == production {
		return nil
	}

	if len(filenames) == 0 {
		filenames = []string{defaultEnvFilename}
	}

	for _, f := range filenames {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}

		if err = godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load environment file [%s]", f)
		}
	}

	return nil
}

// GetTimeLocation returns the time location to use for dates and schedules. If it's not set, the local
// time location is used
func GetTimeLocation(v *viper.Viper) (timeLoc *time.Location, err error) {
	timeLocName := v.GetString(TimeLocationKey)
	timeLoc, err = time.LoadLocation(timeLocName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load time location [%s]", timeLocName)
	}

	return timeLoc, nil
}

// GetSchedule returns the schedule definition configured for the job named name
func GetSchedule(v *viper.Viper, name string) (sd schedule.Definition, err error) {
	key := fmt.Sprintf("%s.%s", SchedulesKey, name)
	if !v.IsSet(key) {
		return sd, fmt.Errorf("missing schedule configuration for [%s]", name)
	}

	sd = schedule.Definition{
		Interval: uint64(v.GetInt(key + ".interval")),
		Unit:     v.GetString(key + ".unit"),
		Weekday:  v.GetString(key + ".weekday"),
		AtTime:   v.GetString(key + ".atTime"),
	}

	if sd.Interval == 0 && sd.Weekday == "" {
		return sd, fmt.Errorf("invalid schedule [%s]: an interval or a weekday is required", name)
	}

	if err = sd.Validate(); err != nil {
		return sd, errors.Wrapf(err, "invalid schedule [%s]", name)
	}

	return sd, nil
}
