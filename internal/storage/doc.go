// Package storage persists documents by slug.
//
// A Store encodes documents as JSON and keeps them in a Backend under the key
// "cms:doc:<slug>". Three backends are provided:
//
//	memory  process-local map, for tests and throwaway servers
//	file    one file per document, optionally zstd-compressed
//	sqlite  a single table in an SQLite database (WAL)
//
// Load never fails. A missing key, an unreadable value or a document that
// does not validate all yield the default template for the slug, so the
// editor always has something to show. Save reports errors; the editor
// session decides what to do with them.
package storage
