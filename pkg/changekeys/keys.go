package changekeys

import (
	"fmt"
	"strings"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

const defaultPrefix = "site"

func prefixOrDefault(prefix string) string {
	prefix = strings.Trim(prefix, ".: ")
	if prefix == "" {
		return defaultPrefix
	}
	return prefix
}

// NATSSubject is the NATS subject carrying change events for section,
// e.g. site.messages.changes.
func NATSSubject(prefix string, section domain.Section) string {
	return fmt.Sprintf("%s.%s.changes", prefixOrDefault(prefix), section)
}

// RedisChannel is the Redis pub/sub channel carrying change events for section,
// e.g. site:changes:messages.
func RedisChannel(prefix string, section domain.Section) string {
	return fmt.Sprintf("%s:changes:%s", prefixOrDefault(prefix), section)
}
