// Package transform converts a unit's unpacked images with an external
// command and copies its label files alongside them.
//
// Images are processed by a bounded set of goroutines. A failed conversion
// does not stop the others; it shows up as a shortfall between images found
// and images produced, which the integrity verifier turns into a unit
// failure.
package transform
