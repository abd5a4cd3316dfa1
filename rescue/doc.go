/*
Package rescue extracts discordant read pairs from a BAM file: pairs where
one or both ends failed to map.

Run drives the whole process:

 1. Classify streams the input once and routes each qualifying record into
    one of four buckets by the mapping state of the record and its mate.
 2. MateRescue reunites mates that were routed to different buckets. It reads
    query names in bounded batches and emits the subject records with a
    matching name. Three such passes run concurrently.
 3. BuildRegions piles up the mapped ends whose mates were rescued and
    coalesces the positions meeting a coverage threshold into regions.
 4. SweepOverlaps keeps the mapped ends that overlap a region, and a final
    MateRescue pass collects their unmapped mates.

The both-unmapped pairs are concatenated into a single output.
*/
package rescue
