// Package reconcile runs one pass of the cinema listing reconciliation:
// fetch the feed, normalize listing slugs, resolve each distinct title
// against the catalog, register matches in listing order, fold screening
// events into the registry, and rank the result for display.
//
// With Workers > 1 titles are resolved concurrently before registration, so
// the first listing for a title still wins. Per-day event fetches share the
// same bound and are ingested in feed order.
package reconcile
