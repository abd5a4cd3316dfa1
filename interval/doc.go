/*Package interval derives genomic regions from a coverage signal and tests
  alignment records against them.

  A Region is a closed interval of 0-based positions on one reference.
  RegionBuilder turns a per-position depth stream (as produced by
  package pileup) into a sorted, disjoint list of the maximal regions whose
  depth meets a threshold.
*/
package interval
