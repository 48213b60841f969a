package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configures the ephemeral freshness cache. The cache is
// optional; an empty Addr disables it.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	PoolSize int    `json:"pool-size" mapstructure:"pool-size"`

	// TTL is the freshness window for cached vehicle locations.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
}

// NewRedisOptions creates a RedisOptions object with default parameters.
func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		Addr:     "",
		DB:       0,
		PoolSize: 50,
		TTL:      300 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *RedisOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Addr != "" {
		if err := ValidateAddress(o.Addr); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// AddFlags adds flags related to the freshness cache to the specified FlagSet.
func (o *RedisOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis address for the location freshness cache (empty disables the cache).")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.IntVar(&o.PoolSize, "redis.pool-size", o.PoolSize, "Redis connection pool size.")
	fs.DurationVar(&o.TTL, "redis.ttl", o.TTL, "Expiry for cached vehicle locations.")
}
