// Package segmenters provides implementations of the Segmenter interface
// for the upload formats the review pipeline accepts. Each segmenter turns
// raw bytes into an ordered, addressable sequence of paragraphs.
//
// Segmenters are registered with the Registry at startup.
package segmenters
