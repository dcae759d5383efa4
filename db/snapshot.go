package db

// Snapshot is a read-only, point-in-time view of every table (§4.D:
// "begin_read() returns a consistent snapshot unaffected by concurrent
// writers"). The query interface (§4.G) opens one per request so a
// long-running scan never observes a commit the coordinator makes while
// the scan is in flight, and readers opened before a commit never
// observe it (§5). Must be closed once the caller is done with it.
type Snapshot interface {
	KeyValueReader
	Iterable
	Close() error
}

// Snapshotter produces Snapshots, typically implemented by the store
// handle itself.
type Snapshotter interface {
	NewSnapshot() Snapshot
}
