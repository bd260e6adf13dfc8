package config

import (
	"encoding/base64"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const MsgFailedToReadConfiguration = "failed to read configuration"

var ErrFailedToReadConfiguration = errors.New(MsgFailedToReadConfiguration)

type Configuration struct {
	PostgresDB struct {
		Host     string `envconfig:"DB_SERVER" required:"true" default:"localhost"`
		Port     uint32 `envconfig:"DB_PORT" required:"true" default:"5432"`
		User     string `envconfig:"DB_USER" required:"true" default:"postgres"`
		Pass     string `envconfig:"DB_PASS" required:"true" default:"postgres"`
		Database string `envconfig:"DB_DATABASE" required:"true" default:"postgres"`
		SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	}
	APIPort                         uint16        `envconfig:"API_PORT" default:"8080"`
	Authorization                   bool          `envconfig:"AUTHORIZATION" default:"true"`
	ClientID                        string        `envconfig:"CLIENT_ID" default:""`
	ClientSecret                    string        `envconfig:"CLIENT_SECRET" default:""`
	Development                     bool          `envconfig:"DEVELOPMENT" default:"false"`
	PermittedOrigin                 string        `envconfig:"PERMITTED_ORIGIN_URL" default:"*"`
	OIDCBaseURL                     string        `envconfig:"OIDC_BASE_URL" default:"https://iam.openlims.org/realms/labflow"`
	LogLevel                        zerolog.Level `envconfig:"LOG_LEVEL" default:"1"`
	ApplicationName                 string        `envconfig:"APPLICATION_NAME" default:"labflow"`
	DBSchema                        string        `envconfig:"DB_SCHEMA" default:"labflow"`
	EventLogURL                     string        `envconfig:"EVENT_LOG_URL" default:"http://eventlog"`
	RedisURL                        string        `envconfig:"REDIS_URL" default:""`
	RedisPort                       int           `envconfig:"REDIS_PORT" default:"6379"`
	FlaggingCacheTTLSeconds         int           `envconfig:"FLAGGING_CACHE_TTL_SECONDS" default:"60"`
	RequestTimeoutSeconds           uint          `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"30"`
	Proxy                           string        `envconfig:"PROXY" default:""`
	StandardAPIClientTimeoutSeconds uint          `envconfig:"STANDARD_API_CLIENT_TIMEOUT_SECONDS" default:"10"`

	ClientCredentialAuthHeaderValue string
}

func ReadConfiguration() (Configuration, error) {
	var config Configuration
	err := envconfig.Process("", &config)
	if err != nil {
		err = errors.Wrap(err, MsgFailedToReadConfiguration)
		log.Error().Err(err).Msgf("%s\n", ErrFailedToReadConfiguration)
		return config, err
	}
	config.ClientCredentialAuthHeaderValue = base64.StdEncoding.EncodeToString([]byte(config.ClientID + ":" + config.ClientSecret))
	return config, nil
}
