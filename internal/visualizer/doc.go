// Package visualizer computes frequency bars for the recording level display.
package visualizer
