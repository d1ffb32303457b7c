// Package engine implements the transaction queue manager and scheduler at
// the heart of recsync.
//
// One engine instance owns the pending queue, the single reusable request
// container, the session lifecycle, and the backoff timer. A periodic tick
// drives all progress: verify the server URL, respect the backoff window,
// batch pending transactions into a container and exchange it, regenerate
// the session near expiry, keep the session alive, and poll for remote
// changes. At most one container is ever in flight; the HTTP exchange is the
// only blocking operation.
//
// Producers enqueue transactions at any time; completion callbacks are
// registered in the engine keyed by transaction id so the transaction value
// itself stays free of behavior and trivially serializable.
package engine
