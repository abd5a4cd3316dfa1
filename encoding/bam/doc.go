// Package bam writes and indexes BAM files using github.com/grailbio/hts.
package bam
