// Package cache implements the cached data-access layer over the
// persistent store: a read-through, write-invalidated primary cache of
// the decoded collection kept coherent against external modifications
// via change notifications, and a derived cache of the aggregate that
// piggybacks on the primary's freshness token.
//
// The freshness token is the store's last-modification signal. Token
// inequality is the sole invalidation trigger; content is never
// compared. Invalidation is lazy: clearing happens at notification
// time, reloading at the next read.
package cache
