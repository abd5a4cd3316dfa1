/*
bio-mate-rescue extracts the discordant read pairs of a BAM file: pairs in
which one or both reads failed to map. Reads are filtered by mapping and base
quality, mates are reunited across the intermediate files, and the
half-mapped pairs are restricted to regions where the mapped reads reach a
minimum coverage.

Three BAM files are written:

  -mapped    mapped reads with an unmapped mate, in covered regions
  -unmapped  the unmapped mates of the -mapped reads
  -all       pairs where both reads are unmapped

Sample usage:

	bio-mate-rescue -input in.bam -mapped half_mapped.bam \
	    -unmapped half_unmapped.bam -all both_unmapped.bam -coverage 3

The exit status is 1 if the paths are invalid, 2 if no region reaches the
coverage threshold, and 3 if the run fails partway through.
*/
package main
