package errutils

// Package errutils provides a set of utilities for working with errors in Go.

// Example:
//
// The following example demonstrates how to use `MultiError` to collect several errors:
//
//     package main
//
//     import (
//         "fmt"
//         "oss.nandlabs.io/slumber/errutils"
//     )
//
//     func main() {
//         multiErr := errutils.NewMultiErr(nil)
//         multiErr.Add(someFunction())
//         multiErr.Add(errutils.FmtError("failed to perform operation %d", 2))
//         if multiErr.HasErrors() {
//             fmt.Println(multiErr)
//         }
//     }
//
// In the above example, nil errors passed to `Add` are dropped, and the collected errors
// are printed one per line by `fmt.Println()`.
