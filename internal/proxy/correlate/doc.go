// Package correlate provides a generic pending-request store for matching
// asynchronous responses back to the requests that produced them.
//
// The store hands out monotonically increasing request ids and one future per
// request. A response arriving over the channel settles the future through
// Resolve; requests that are never answered are garbage-collected after a
// fixed timeout so the table stays bounded across the process lifetime.
//
// Guarantees:
//   - Ids are unique and strictly increasing within one store instance
//   - An entry is removed exactly once, by resolution or by expiry
//   - Resolve on an unknown, resolved, or expired id is a reported no-op
//   - No ordering relationship between resolution order and creation order
//
// Example Usage:
//
//	store := correlate.New[Reply]()
//	id, future := store.Create()
//	send(Message{ID: id, Path: path})
//	select {
//	case reply := <-future:
//		// use reply
//	case <-ctx.Done():
//		// caller-imposed deadline
//	}
package correlate
