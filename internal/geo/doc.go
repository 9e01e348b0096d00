// Package geo holds the pure geometry behind nearby search: bounding-box
// pre-filtering, exact great-circle ranking and the privacy grid that
// replaces raw coordinates in every third-party-facing view.
package geo
