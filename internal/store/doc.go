// Package store provides persistent storage backends for the record
// collection: a single JSON file on local disk, or a single object in an
// S3 bucket. Both expose the blob-plus-modification-signal contract the
// cache layer is built on.
package store
