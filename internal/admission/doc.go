// Package admission decides whether a unit may start downloading.
//
// The Controller asks a Sizer for the unit's remote size token, converts it
// to bytes, multiplies by a safety factor, and compares the result with the
// free space of the staging volume. Insufficient space rejects the unit with
// services.ErrResourceExhausted before any bytes are transferred. Every other
// problem (unknown unit, unparseable size, probe failure) is logged and the
// unit is admitted.
package admission
