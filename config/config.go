package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	MetadataBackendBadger    = "badger"
	MetadataBackendSQLite    = "sqlite"
	MetadataBackendFirestore = "firestore"

	BlobBackendLocal = "local"
	BlobBackendMinio = "minio"
	BlobBackendGCS   = "gcs"
)

const (
	// DevAdminPassword is only accepted when APP_ENV is development.
	DevAdminPassword = "admin123"

	defaultHTTPAddr       = ":8080"
	defaultSessionTTL     = 24 * time.Hour
	defaultMaxUploadBytes = 20 << 20
	minSessionSecretLen   = 32
)

type Config struct {
	Env      string         `yaml:"env" envconfig:"APP_ENV"`
	HTTPAddr string         `yaml:"http_addr" envconfig:"HTTP_ADDR"`
	Auth     AuthConfig     `yaml:"auth"`
	Upload   UploadConfig   `yaml:"upload"`
	Metadata MetadataConfig `yaml:"metadata"`
	Blob     BlobConfig     `yaml:"blob"`
	NATS     NATSConfig     `yaml:"nats"`
	CORS     CORSConfig     `yaml:"cors"`
	Log      LogConfig      `yaml:"log"`

	// UsingDevPassword is set when the development fallback password is active.
	UsingDevPassword bool `yaml:"-" ignored:"true"`
}

type AuthConfig struct {
	AdminPassword     string        `yaml:"admin_password" envconfig:"ADMIN_PASSWORD"`
	AdminPasswordHash string        `yaml:"admin_password_hash" envconfig:"ADMIN_PASSWORD_HASH"`
	SessionSecret     string        `yaml:"session_secret" envconfig:"SESSION_SECRET"`
	SessionTTL        time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	CookieSecure      bool          `yaml:"cookie_secure" envconfig:"COOKIE_SECURE"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

type MetadataConfig struct {
	Backend             string `yaml:"backend" envconfig:"METADATA_BACKEND"`
	BadgerPath          string `yaml:"badger_path" envconfig:"BADGER_PATH"`
	SQLitePath          string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	FirestoreProject    string `yaml:"firestore_project" envconfig:"FIRESTORE_PROJECT"`
	FirestoreCollection string `yaml:"firestore_collection" envconfig:"FIRESTORE_COLLECTION"`
	CredentialsFile     string `yaml:"credentials_file" envconfig:"GOOGLE_CREDENTIALS_FILE"`
}

type BlobConfig struct {
	Backend          string      `yaml:"backend" envconfig:"BLOB_BACKEND"`
	MediaStoragePath string      `yaml:"media_storage_path" envconfig:"MEDIA_STORAGE_PATH"`
	Minio            MinioConfig `yaml:"minio"`
	GCSBucket        string      `yaml:"gcs_bucket" envconfig:"GCS_BUCKET"`
	GCSCredentials   string      `yaml:"gcs_credentials_file" envconfig:"GCS_CREDENTIALS_FILE"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" envconfig:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" envconfig:"MINIO_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"MINIO_USE_SSL"`
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL           string `yaml:"url" envconfig:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" envconfig:"NATS_SUBJECT_PREFIX"`
	ClientName    string `yaml:"client_name" envconfig:"NATS_CLIENT_NAME"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// Default returns the configuration used when no file or environment overrides are present.
// It is a production configuration; the development fallbacks need APP_ENV=development.
func Default() Config {
	return Config{
		Env:      EnvProduction,
		HTTPAddr: defaultHTTPAddr,
		Auth: AuthConfig{
			SessionTTL:   defaultSessionTTL,
			CookieSecure: true,
		},
		Upload: UploadConfig{MaxBytes: defaultMaxUploadBytes},
		Metadata: MetadataConfig{
			Backend:             MetadataBackendBadger,
			BadgerPath:          filepath.Join(".", "data", "metadata"),
			SQLitePath:          filepath.Join(".", "data", "photos.db"),
			FirestoreCollection: "photos",
		},
		Blob: BlobConfig{
			Backend:          BlobBackendLocal,
			MediaStoragePath: filepath.Join(".", "media_storage"),
			Minio:            MinioConfig{Bucket: "photos"},
		},
		NATS: NATSConfig{
			SubjectPrefix: "gallery",
			ClientName:    "photogallery",
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// process environment, in that order of precedence (last wins).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.Blob.Backend == BlobBackendLocal {
		absMediaStorage, err := filepath.Abs(cfg.Blob.MediaStoragePath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", cfg.Blob.MediaStoragePath, err)
		}
		cfg.Blob.MediaStoragePath = absMediaStorage
	}

	if cfg.IsDevelopment() {
		if err := cfg.applyDevDefaults(); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func (c *Config) applyDevDefaults() error {
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		c.Auth.AdminPassword = DevAdminPassword
		c.UsingDevPassword = true
	}
	if c.Auth.SessionSecret == "" {
		secret := make([]byte, minSessionSecretLen)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate development session secret: %w", err)
		}
		c.Auth.SessionSecret = hex.EncodeToString(secret)
	}
	return nil
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}

	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required"))
	}
	if !c.IsDevelopment() && c.Auth.AdminPassword == DevAdminPassword {
		errs = append(errs, errors.New("the development admin password cannot be used outside development"))
	}
	if len(c.Auth.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	switch c.Metadata.Backend {
	case MetadataBackendBadger, MetadataBackendSQLite:
	case MetadataBackendFirestore:
		if c.Metadata.FirestoreProject == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT is required for the firestore metadata backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown METADATA_BACKEND %q", c.Metadata.Backend))
	}

	switch c.Blob.Backend {
	case BlobBackendLocal:
		if c.Blob.MediaStoragePath == "" {
			errs = append(errs, errors.New("MEDIA_STORAGE_PATH is required for the local blob backend"))
		}
	case BlobBackendMinio:
		m := c.Blob.Minio
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required for the minio blob backend"))
		}
	case BlobBackendGCS:
		if c.Blob.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend))
	}

	if len(c.CORS.AllowedOrigins) == 0 || slices.Contains(c.CORS.AllowedOrigins, "") {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin"))
	}

	return errors.Join(errs...)
}
