package ppg

import (
	"image"
	"image/color"
	"math"
)

// solidFrame returns a w x h frame filled with one colour.
func solidFrame(ts int64, w, h int, c color.RGBA) Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = 255
	}
	return Frame{Image: img, Timestamp: ts}
}

// offCrestMs shifts a 1000 ms sine sampled every 100 ms so that its
// crests are not centred between two samples. From phase 0 each crest
// falls midway between two equal samples and the centred 5-sample mean
// ties there, leaving no strict maximum.
const offCrestMs = 130

// pulseFrame renders a fingertip frame whose red level follows a sine of
// the given period, shifted by phaseMs.
func pulseFrame(ts, periodMs, phaseMs int64) Frame {
	v := 150 + 40*math.Sin(2*math.Pi*float64(ts+phaseMs)/float64(periodMs))
	return solidFrame(ts, 64, 48, color.RGBA{R: uint8(math.Round(v)), G: 40, B: 40})
}

// recorder captures every callback in delivery order.
type recorder struct {
	calls     []string
	rates     []int
	fingers   []bool
	sdnn      []int
	rmssd     []int
	effective [][2]float64
	results   []Result
}

func (r *recorder) OnHeartRate(bpm int) {
	r.calls = append(r.calls, "heart_rate")
	r.rates = append(r.rates, bpm)
}

func (r *recorder) OnFingerDetected(d bool) {
	r.calls = append(r.calls, "finger")
	r.fingers = append(r.fingers, d)
}

func (r *recorder) OnSDNN(ms int) {
	r.calls = append(r.calls, "sdnn")
	r.sdnn = append(r.sdnn, ms)
}

func (r *recorder) OnRMSSD(ms int) {
	r.calls = append(r.calls, "rmssd")
	r.rmssd = append(r.rmssd, ms)
}

func (r *recorder) OnEffectiveRate(hr, hrv float64) {
	r.calls = append(r.calls, "effective")
	r.effective = append(r.effective, [2]float64{hr, hrv})
}

func (r *recorder) OnResult(res Result) {
	r.calls = append(r.calls, "result")
	r.results = append(r.results, res)
}
