package config

import (
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Astemirdum/library-circulation/circulation/internal/metadata"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/Astemirdum/library-circulation/pkg/logger"
	"github.com/Astemirdum/library-circulation/pkg/postgres"
	"github.com/Astemirdum/library-circulation/pkg/tracing"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

// Auth holds opaque staff tokens as STAFF_TOKENS=token1:staffId1,token2:staffId2.
type Auth struct {
	Tokens map[string]string `envconfig:"STAFF_TOKENS" json:"-"`
}

type Config struct {
	Server   HTTPServer      `yaml:"server"`
	Database postgres.DB     `yaml:"db"`
	Kafka    kafka.Config    `yaml:"kafka"`
	Metadata metadata.Config `yaml:"metadata"`
	Auth     Auth            `yaml:"auth"`
	Tracing  tracing.Config  `yaml:"tracing"`
	Log      logger.Log      `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}
