package config

import "errors"

var (
	// ErrMissingAPIBaseURL indicates that the API base URL is not configured
	ErrMissingAPIBaseURL = errors.New("apiBaseUrl is required in configuration")

	// ErrInvalidStoreDriver indicates an unknown store.driver
	ErrInvalidStoreDriver = errors.New("store.driver must be memory, sqlite or postgres")

	// ErrMissingStoreDSN indicates the postgres driver has no connection URL
	ErrMissingStoreDSN = errors.New("store.dsn is required for the postgres driver")

	// ErrInvalidCredentialSource indicates an unknown credentials.source
	ErrInvalidCredentialSource = errors.New("credentials.source must be keyring, file or env")

	// ErrMissingKeyringAccount indicates the keyring source has no account
	ErrMissingKeyringAccount = errors.New("credentials.account is required for the keyring source")

	// ErrMissingCredentialFile indicates the file source has no path
	ErrMissingCredentialFile = errors.New("credentials.file is required for the file source")

	// ErrInvalidInterval indicates a non-positive sync interval or timeout
	ErrInvalidInterval = errors.New("sync intervals and timeouts must be positive")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file could not be parsed
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
