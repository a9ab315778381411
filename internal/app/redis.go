package app

import "github.com/redis/go-redis/v9"

// newRedisClient builds a client from a bare "host:port" address, the form
// cfg.KeyStore.DSN takes for the "redis" backend (spec §6 env var
// ORBIT_REDIS_ADDR overrides this same value).
func newRedisClient(addr string) (*redis.Client, error) {
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}
