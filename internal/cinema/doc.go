// Package cinema reads the cinema chain's data API: showing posters, the
// genre vocabulary, screening days, and per-day film events for a branch.
//
// Responses arrive in a {"body": ...} envelope and may be brotli or gzip
// encoded. Requests are retried once on 429 and 5xx responses.
package cinema
