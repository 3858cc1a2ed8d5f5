//go:build !cgo

// Package jpeg2000 is unavailable without cgo: JPEG 2000 support depends
// on OpenJPEG, which this build does not link.
package jpeg2000
