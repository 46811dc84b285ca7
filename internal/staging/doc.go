// Package staging owns the on-disk layout of in-flight units and its cleanup.
//
// Every unit gets one directory per intermediate stage under the staging
// root: fetch/<unit>, unpack/<unit>, and transform/<unit>. Finalize removes
// all three once a unit is published; CleanStale and ListDirectories support
// manual maintenance from the CLI.
package staging
