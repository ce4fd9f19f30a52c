// Package listing models cinema feed listings and turns their raw URL slugs
// into catalog query titles.
package listing
