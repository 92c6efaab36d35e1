// Package ppg estimates heart rate and heart-rate variability from camera
// frames of a fingertip pressed against the lens (photoplethysmography).
//
// Frames flow through a fixed pipeline owned by an Analyzer:
//
//	ShouldProcess -> FingerCoverage / AverageRedIntensity -> SignalBuffer
//	  -> FindPeaks -> ToIntervals -> IntervalHistory -> OutlierFilter
//	  -> RateComputer -> Dispatcher
//
// Everything in this package is synchronous and CPU bound. A single
// goroutine feeds frames; listeners may be added or removed from any
// goroutine.
package ppg
