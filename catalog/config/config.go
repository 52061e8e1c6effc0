package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/library-catalog/catalog/internal/session"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"CATALOG_HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"CATALOG_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration
}

// Limits carries the maximum lengths of every bounded text field.
// All of them must be supplied via environment; absence is fatal at
// startup, there are no silent defaults.
type Limits struct {
	BookTitle           int `envconfig:"BOOK_TITLE_MAX_LENGTH" required:"true"`
	BookSummary         int `envconfig:"BOOK_SUMMARY_MAX_LENGTH" required:"true"`
	BookISBN            int `envconfig:"BOOK_ISBN_MAX_LENGTH" required:"true"`
	AuthorFirstName     int `envconfig:"AUTHOR_FIRST_NAME_MAX_LENGTH" required:"true"`
	AuthorLastName      int `envconfig:"AUTHOR_LAST_NAME_MAX_LENGTH" required:"true"`
	BookInstanceImprint int `envconfig:"BOOK_INSTANCE_IMPRINT_MAX_LENGTH" required:"true"`
	GenreName           int `envconfig:"GENRE_NAME_MAX_LENGTH" required:"true"`
}

type Auth struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:"library-catalog"`
}

type Config struct {
	Server   HTTPServer `yaml:"server"`
	Database postgres.Config
	Redis    session.Config
	Limits   Limits
	Auth     Auth
	PageSize int        `yaml:"pageSize" envconfig:"DEFAULT_PAGE_SIZE" default:"10"`
	Log      logger.Log `yaml:"log"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = level
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = d
	}
}
