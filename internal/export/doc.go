// Package export renders a reconcile result as a JSON report or appends it
// to a SQLite file. Export files are write-only artifacts; reelrank never
// reads them back.
package export
