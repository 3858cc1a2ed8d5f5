//go:build !cgo

// Package jpegls is unavailable without cgo: JPEG-LS support depends on
// CharLS, which this build does not link.
package jpegls
