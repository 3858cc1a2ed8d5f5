//go:build !cgo

// Package jpegbaseline is unavailable without cgo: JPEG Baseline support
// depends on libjpeg-turbo, which this build does not link.
package jpegbaseline
