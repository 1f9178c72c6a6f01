package pkgconfig

import (
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, so that a key like
// "transaction.gate.ttl" can be overridden with GOSETTLE_TRANSACTION_GATE_TTL.
const EnvPrefix = "GOSETTLE"

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from the given file path and returns a
// Viper-backed Config. Environment variables take precedence over file values.
//
// The config file type is inferred by Viper from the filename extension.
func NewViper(pathFile string) (*Viper, error) {
	v := viper.New()

	filename := path.Base(pathFile)
	filePath := path.Dir(pathFile)

	configName := path.Base(filename[:len(filename)-len(path.Ext(filename))])

	v.AddConfigPath(filePath)
	v.SetConfigName(configName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.WatchConfig()

	return &Viper{v: v}, nil
}

// GetInt returns the value for key as int64.
func (vc *Viper) GetInt(key string) int64 {
	return vc.v.GetInt64(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetDuration returns the value for key parsed as a duration ("200ms", "1h").
func (vc *Viper) GetDuration(key string) time.Duration {
	return vc.v.GetDuration(key)
}

// GetArray returns the value for key as a string slice. A YAML sequence maps
// one to one; a scalar value (the shape environment overrides arrive in) is
// split by commas.
func (vc *Viper) GetArray(key string) []string {
	if raw, ok := vc.v.Get(key).(string); ok {
		return strings.Split(raw, ",")
	}

	return vc.v.GetStringSlice(key)
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	// Nothing to release; Viper keeps no open handles after reading.
	return nil
}

var _ Config = (*Viper)(nil)
