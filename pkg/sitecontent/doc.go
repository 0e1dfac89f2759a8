// Package sitecontent provides the content backend for simple-site: accounts,
// websites, and the media and carousel items attached to each website.
//
// It exposes a single Service interface that gates every website and child
// operation on ownership, normalizes uploaded images, and keeps the blob store
// consistent with the record store. Repositories (memory, Postgres, SQLite)
// and blob stores (memory, filesystem, S3) are provided under subpackages.
//
// Blob Lifecycle
//
// The record store and blob store share no transaction. Operations are ordered
// so that a crash leaves an orphan blob rather than a record pointing at a
// missing blob: create writes the blob before inserting the record, update
// commits the new reference before deleting the old blob, and delete removes
// the record before the blob. Orphans are reclaimed by the scan package.
//
// Ownership
//
// A website that does not exist and a website owned by someone else produce
// the same ErrNotFoundOrForbidden, so callers cannot probe for existence.
package sitecontent
