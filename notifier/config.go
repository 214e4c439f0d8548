package notifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/99designs/keyring"
	"github.com/cockroachdb/errors"
)

const (
	// EnvUsername overrides the configured Gmail account.
	EnvUsername = "GMAIL_NOTIFIER_USERNAME"
	// EnvPassword supplies the app password directly, bypassing the keyring.
	EnvPassword = "GMAIL_NOTIFIER_PASSWORD"
	// EnvGmailURL overrides the fallback inbox URL.
	EnvGmailURL = "GMAIL_NOTIFIER_URL"
	// EnvCheckInterval overrides the poll interval in seconds.
	EnvCheckInterval = "GMAIL_NOTIFIER_CHECK_INTERVAL"
	// EnvKeyringPassword unlocks the file keyring backend on headless hosts.
	EnvKeyringPassword = "GMAIL_NOTIFIER_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential
)

const (
	keyringService = "gmail-notifier"
	settingsFile   = "settings.json"
)

// Settings holds the persisted application settings.  The account password is
// never part of this struct's JSON form; it lives in the OS keyring.
type Settings struct {
	Username      string `json:"username"`
	CheckInterval int    `json:"check_interval"` // seconds between polls
	RecheckDelay  int    `json:"recheck_delay"`  // seconds before the forced re-poll after a local mark-read
	GmailURL      string `json:"gmail_url"`
	LastCheckTime int64  `json:"last_check_time"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
}

// DefaultSettings returns the default settings values.
func DefaultSettings() *Settings {
	return &Settings{
		CheckInterval: 300,
		RecheckDelay:  20,
		GmailURL:      "https://mail.google.com",
		LastCheckTime: 0,
		Host:          "127.0.0.1",
		Port:          8334,
	}
}

// ConfigDir returns the settings directory, ~/.config/gmail-notifier.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return filepath.Join(home, ".config", "gmail-notifier"), nil
}

// EnsureConfigDir creates the settings directory if missing.  Safe to call
// more than once; this is the explicit startup replacement for creating
// directories as an import side effect.
func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.WithStack(err)
	}
	return dir, nil
}

// SettingsPath returns the full path of the settings file.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFile), nil
}

// LoadSettings reads the settings file.  A missing or corrupt file yields the
// defaults together with an advisory error; the returned settings are always
// usable.  Environment variables override whatever was loaded.
func LoadSettings() (*Settings, error) {
	settings := DefaultSettings()

	path, err := SettingsPath()
	if err != nil {
		return overwriteSettingsFromEnv(settings), err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overwriteSettingsFromEnv(settings), nil
		}
		return overwriteSettingsFromEnv(settings),
			WrapErr(KindStateCorrupt, errors.WithStack(err))
	}

	if err := json.Unmarshal(data, settings); err != nil {
		// Corrupt settings never abort startup; start over from defaults.
		return overwriteSettingsFromEnv(DefaultSettings()),
			WrapErr(KindStateCorrupt, errors.WithStack(err))
	}

	return overwriteSettingsFromEnv(settings), nil
}

// ParseSettings decodes a settings JSON string on top of the defaults.
func ParseSettings(settingsStr string) (*Settings, error) {
	settings := DefaultSettings()
	if settingsStr == "" {
		return overwriteSettingsFromEnv(settings), nil
	}
	if err := json.Unmarshal([]byte(settingsStr), settings); err != nil {
		return nil, errors.WithStack(err)
	}
	return overwriteSettingsFromEnv(settings), nil
}

// SaveSettings writes the whole settings file in one overwrite.  Callers
// serialize writes; concurrent saves are not supported.
func SaveSettings(settings *Settings) error {
	if _, err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := SettingsPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o600))
}

// overwriteSettingsFromEnv overrides settings values with environment
// variables when they are set.
func overwriteSettingsFromEnv(settings *Settings) *Settings {
	if value, found := os.LookupEnv(EnvUsername); found {
		settings.Username = value
	}
	if value, found := os.LookupEnv(EnvGmailURL); found {
		settings.GmailURL = value
	}
	if value, found := os.LookupEnv(EnvCheckInterval); found {
		if interval, err := strconv.Atoi(value); err == nil && interval > 0 {
			settings.CheckInterval = interval
		}
	}
	return settings
}

func openAccountKeyring() (keyring.Keyring, error) {
	dir, err := EnsureConfigDir()
	if err != nil {
		return nil, err
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              keyringService,
		KeychainTrustApplication: false,
		FileDir:                  filepath.Join(dir, "keyring"),
		FilePasswordFunc:         fileKeyringPasswordFunc(),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ring, nil
}

func fileKeyringPasswordFunc() keyring.PromptFunc {
	if password, found := os.LookupEnv(EnvKeyringPassword); found {
		return keyring.FixedStringPrompt(password)
	}
	return keyring.TerminalPrompt
}

// LoadPassword retrieves the account's app password.  EnvPassword wins over
// the keyring; an account without a stored password yields "" without error.
func LoadPassword(username string) (string, error) {
	if password, found := os.LookupEnv(EnvPassword); found {
		return password, nil
	}
	if username == "" {
		return "", nil
	}

	ring, err := openAccountKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(username)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", errors.WithStack(err)
	}
	return string(item.Data), nil
}

// SavePassword stores the account's app password in the OS keyring.
func SavePassword(username, password string) error {
	if username == "" {
		return AppErr(KindConfigIncomplete, "cannot store a password without a username")
	}

	ring, err := openAccountKeyring()
	if err != nil {
		return err
	}

	return errors.WithStack(ring.Set(keyring.Item{
		Key:   username,
		Data:  []byte(password),
		Label: keyringService,
	}))
}
