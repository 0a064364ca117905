package application

import "fmt"

// Query keys group cache entries so that a collection-level mutation drops its
// listing by key and every item with one prefix invalidation:
//
//	content:<collection>          list of a collection
//	content:<collection>:<id>     single item
const queryKeyContent = "content"

// QueryKeyContentList is the cache key of a collection listing.
func QueryKeyContentList(collection string) string {
	return queryKeyContent + ":" + collection
}

// QueryKeyContentItem is the cache key of one item.
func QueryKeyContentItem(collection string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", queryKeyContent, collection, id)
}

// QueryKeyContentItemPrefix covers every item of a collection and nothing of
// a collection whose name merely starts the same way.
func QueryKeyContentItemPrefix(collection string) string {
	return QueryKeyContentList(collection) + ":"
}

// SeedTypeContent names the one-time default-rows seeding of a collection.
func SeedTypeContent(collection string) string {
	return "seed:" + queryKeyContent + ":" + collection
}
