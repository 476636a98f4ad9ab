// Package table implements the typed heterogeneous table store.
//
// A Store holds values of many unrelated types in one map. Values are
// addressed by a table ID and a key. An ID[K, V] carries the key and value
// types as type parameters; only its number is stored at runtime:
//
//	var Counter = table.NewID[struct{}, uint64](0)
//
//	s := table.New()
//	defer s.Close()
//
//	if err := Counter.Put(s, struct{}{}, 3); err != nil {
//	    return err
//	}
//	n, err := Counter.BorrowMut(s, struct{}{})
//	if err != nil {
//	    return err
//	}
//	*n--
//
// # Live cache and backing store
//
// Every Put writes through: the value is serialized into a Record in the
// backing store, then boxed into the live cache. Borrow and BorrowMut read
// the live cache. An entry that exists only in the backing store (after
// ClearCache, or when a durable backend is reopened) is decoded and cached on
// first access.
//
// Writes through the pointer returned by BorrowMut change the cached value
// only. The backing store keeps the last Put until the next Put.
//
// # Concurrency
//
// A Store is not safe for concurrent use. Callers that share one across
// goroutines must serialize access themselves.
package table
