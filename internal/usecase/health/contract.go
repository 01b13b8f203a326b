package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CollectionCounter reports how many disease records a collection holds.
type CollectionCounter interface {
	Count(ctx context.Context, collection string) (int, error)
}

// TableSizer reports the size of the in-memory phenotype table.
type TableSizer interface {
	Len() int
}
