package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Settings struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	Log       LogSettings
	Auth      AuthSettings
	Datastore DatastoreSettings
	Returns   ReturnsSettings

	Scylla  ScyllaSettings  `envPrefix:"SCYLLA_"`
	Redis   RedisSettings   `envPrefix:"REDIS_"`
	Elastic ElasticSettings `envPrefix:"ELASTIC_"`
	MinIO   MinIOSettings   `envPrefix:"MINIO_"`
	SMTP    SMTPSettings    `envPrefix:"SMTP_"`
	OAuth   OAuthSettings
}

type LogSettings struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type AuthSettings struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"24h"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
	SessionSecret   string        `env:"SESSION_SECRET"`
}

// DatastoreSettings : scylla (production historique), mysql ou sqlite (dev local)
type DatastoreSettings struct {
	Driver string `env:"DATASTORE_DRIVER" envDefault:"scylla"`
	DSN    string `env:"DATABASE_URL" envDefault:"file:returnbox.db?_foreign_keys=on"`
}

type ReturnsSettings struct {
	TimeZone     string        `env:"MERCHANT_TIMEZONE" envDefault:"Europe/Brussels"`
	ConditionSet string        `env:"REFUND_CONDITION_SET" envDefault:"grade"`
	CourierDelay time.Duration `env:"COURIER_MOCK_DELAY" envDefault:"1s"`
	MaxPhotoSize int64         `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
}

// Location retourne le fuseau du calendrier marchand (comparaison des dates d'enlèvement)
func (r ReturnsSettings) Location() (*time.Location, error) {
	return time.LoadLocation(r.TimeZone)
}

type ScyllaSettings struct {
	Hosts      []string               `env:"HOSTS" envSeparator:"," envDefault:"127.0.0.1"`
	SSLEnabled bool                   `env:"SSL_ENABLED"`
	CACertPath string                 `env:"SSL_CA_PATH"`
	Users      ScyllaKeyspaceSettings `envPrefix:"KS_USERS_"`
	Returns    ScyllaKeyspaceSettings `envPrefix:"KS_RETURNS_"`
}

type ScyllaKeyspaceSettings struct {
	Keyspace string `env:"KEYSPACE"`
	Role     string `env:"ROLE"`
	Password string `env:"PASSWORD"`
}

type RedisSettings struct {
	Host     string `env:"HOST" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type ElasticSettings struct {
	URL      string `env:"URL"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Index    string `env:"RETURNS_INDEX" envDefault:"returns"`
}

type MinIOSettings struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	UseSSL    bool   `env:"USE_SSL"`
	Bucket    string `env:"BUCKET" envDefault:"returnbox"`
	PublicURL string `env:"PUBLIC_URL"`
}

type SMTPSettings struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"noreply@returnbox.app"`
}

// Enabled : sans hôte SMTP, les notifications sont simplement journalisées
func (s SMTPSettings) Enabled() bool { return s.Host != "" }

type OAuthSettings struct {
	GoogleClientID       string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `env:"GOOGLE_CLIENT_SECRET"`
	FacebookClientID     string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `env:"FACEBOOK_CLIENT_SECRET"`
}

// Load charge le .env (facultatif) puis parse l'environnement
func Load() (*Settings, error) {
	if err := godotenv.Load(".env"); err != nil {
		zap.S().Info("⚠️  Aucun fichier .env trouvé — on continue avec les variables d'environnement du système")
	} else {
		zap.S().Info("✅ Fichier .env chargé avec succès")
	}
	return Parse()
}

// Parse lit uniquement les variables d'environnement
func Parse() (*Settings, error) {
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("configuration invalide: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Settings) Validate() error {
	if s.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET manquant")
	}
	switch s.Datastore.Driver {
	case "scylla", "mysql", "sqlite":
	default:
		return fmt.Errorf("DATASTORE_DRIVER inconnu: %s", s.Datastore.Driver)
	}
	switch s.Returns.ConditionSet {
	case "grade", "packaging":
	default:
		return fmt.Errorf("REFUND_CONDITION_SET inconnu: %s", s.Returns.ConditionSet)
	}
	if _, err := s.Returns.Location(); err != nil {
		return fmt.Errorf("MERCHANT_TIMEZONE invalide: %w", err)
	}
	return nil
}

func (s *Settings) IsProduction() bool { return s.Environment == "production" }
