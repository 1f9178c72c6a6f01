package pkgconfig

import "time"

// Config is the read surface the rest of the application depends on.
type Config interface {
	GetInt(key string) int64
	GetBool(key string) bool
	GetString(key string) string
	GetDuration(key string) time.Duration
	GetArray(key string) []string
	Close() error
}
