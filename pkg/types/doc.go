// Package types defines the shared data model for recordstore: records,
// collections, the derived aggregate, and cache statistics.
package types
