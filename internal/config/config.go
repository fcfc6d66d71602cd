package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/eleven-am/strata/internal/domain"
)

const EnvPrefix = "STRATA"

type Config struct {
	Namespace   string `mapstructure:"namespace" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Name        string `mapstructure:"name" validate:"required"`
	Region      string `mapstructure:"region" validate:"required"`

	CIDR               string   `mapstructure:"cidr" validate:"required,cidrv4"`
	Subnets            Subnets  `mapstructure:"subnets"`
	InterfaceEndpoints []string `mapstructure:"interfaceEndpoints" validate:"unique,dive,required"`

	// Peer is nil when the network is not peered.
	Peer *Peer `mapstructure:"peer"`

	// Outputs is where this network's outputs document is published.
	Outputs string `mapstructure:"outputs"`

	Concurrency    int           `mapstructure:"concurrency" validate:"gte=1,lte=50"`
	PeeringTimeout time.Duration `mapstructure:"peeringTimeout" validate:"gt=0"`

	Log Log `mapstructure:"log"`
}

type Subnets struct {
	Public       bool `mapstructure:"public"`
	PrivateApp   bool `mapstructure:"privateApp"`
	PrivateData  bool `mapstructure:"privateData"`
	IsolatedData bool `mapstructure:"isolatedData"`
}

type Peer struct {
	// Stack is the outputs document of the bootstrap network.
	Stack   string `mapstructure:"stack" validate:"required"`
	RoleARN string `mapstructure:"roleArn" validate:"omitempty,startswith=arn:"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("namespace", "")
	v.SetDefault("environment", "")
	v.SetDefault("name", "")
	v.SetDefault("region", "")
	v.SetDefault("cidr", "")
	v.SetDefault("subnets.public", false)
	v.SetDefault("subnets.privateApp", false)
	v.SetDefault("subnets.privateData", false)
	v.SetDefault("subnets.isolatedData", false)
	v.SetDefault("interfaceEndpoints", []string{})
	v.SetDefault("outputs", "")
	v.SetDefault("concurrency", 10)
	v.SetDefault("peeringTimeout", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the YAML file at path, applies STRATA_* environment overrides
// (STRATA_REGION, STRATA_LOG_LEVEL, ...) and validates the result. An empty
// path uses environment and defaults only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if region := os.Getenv("AWS_REGION"); region != "" {
		v.SetDefault("region", region)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Naming() domain.Naming {
	return domain.Naming{Namespace: c.Namespace, Environment: c.Environment, Name: c.Name}
}

func (c Config) Flags() domain.SubnetFlags {
	return domain.SubnetFlags{
		Public:       c.Subnets.Public,
		PrivateApp:   c.Subnets.PrivateApp,
		PrivateData:  c.Subnets.PrivateData,
		IsolatedData: c.Subnets.IsolatedData,
	}
}

// RemoteRoleARN is the role assumed for the peer side, or empty.
func (c Config) RemoteRoleARN() string {
	if c.Peer == nil {
		return ""
	}
	return c.Peer.RoleARN
}

func (l Log) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
