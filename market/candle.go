package market

import "time"

// Bar represents one closed OHLCV candle. Time is the bar open time in UTC
// and is unique within a Window.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Frame is the columnar view of a bar sequence handed to signal
// generators. All columns have the same length and are ordered oldest
// first.
type Frame struct {
	Time   []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of rows in the frame.
func (f Frame) Len() int {
	return len(f.Close)
}

// FrameOf copies bars into a new Frame.
func FrameOf(bars []Bar) Frame {
	n := len(bars)
	f := Frame{
		Time:   make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, b := range bars {
		f.Time[i] = b.Time
		f.Open[i] = b.Open
		f.High[i] = b.High
		f.Low[i] = b.Low
		f.Close[i] = b.Close
		f.Volume[i] = b.Volume
	}
	return f
}
