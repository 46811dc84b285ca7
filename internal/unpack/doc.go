// Package unpack extracts a unit's zip archives from its fetch directory into
// its unpack directory, one subdirectory per archive.
//
// Extraction rejects entries that would land outside the destination and
// reports the number of file entries listed against the number of files on
// disk afterwards so the integrity verifier can catch short extractions.
package unpack
