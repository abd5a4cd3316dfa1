// Package pileup computes per-position read depth over coordinate-sorted
// alignment records.
package pileup
