// Package vad provides energy-based voice activity detection with an
// adaptive noise floor. Each meeting carries a bounded rolling window of
// recent frame energies; the detection threshold tracks the mean energy of
// recent non-speech frames.
package vad
