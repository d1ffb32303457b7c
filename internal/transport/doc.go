// Package transport implements the HTTP surface the sync engine consumes: a
// reachability probe, the container exchange endpoint, and the lightweight
// change poll.
//
// Transport problems are classified into the protocol's temporary result
// codes (timeout, connection failed, server error, redirected, unexpected
// status) so the engine can fail a whole container and back off without
// inspecting HTTP details itself. Redirects are never followed; a 3xx
// answer means the remembered server URL is stale.
package transport
