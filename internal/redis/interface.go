package redis

import (
	"github.com/redis/go-redis/v9"
)

// Client wraps redis.UniversalClient so callers depend on this package only
type Client interface {
	redis.UniversalClient
}

// Nil is returned by reads of a missing key
const Nil = redis.Nil

// TxFailedErr is returned by EXEC when a watched key changed
const TxFailedErr = redis.TxFailedErr
