package disease

import "github.com/kailas-cloud/phenodex/internal/domain"

const (
	fieldVector = "__vector"
	fieldType   = "type"
)

func collectionPrefix(collection string) string {
	return domain.KeyPrefix + collection + ":"
}

func diseaseKey(collection, id string) string {
	return collectionPrefix(collection) + id
}

func indexName(collection string) string {
	return collectionPrefix(collection) + "idx"
}

// manifestKey sits outside the collection prefix so it is neither indexed nor counted.
func manifestKey(collection string) string {
	return domain.KeyPrefix + "manifest:" + collection
}
