// Package format defines the on-disk .ss record layout: the file header,
// data frames and beacon index records. it is a pure codec package and
// performs no I/O.
//
// records carry no delimiters. every field is fixed-width or
// length-prefixed, so record boundaries are computed, never searched. a
// decoder that runs out of bytes mid-record gets NotEnoughBytesErr, which is
// how a live tail distinguishes a writer mid-append from corruption.
package format
