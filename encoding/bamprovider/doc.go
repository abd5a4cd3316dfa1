// Package bamprovider provides sequential readers over BAM files.
//
// The Provider is an interface for reading the records of a BAM file in stored
// order. NewProvider reads one file; NewConcatProvider chains several files
// into a single stream.
package bamprovider
