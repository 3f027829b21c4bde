package s3_features

// MomentumCalculator compares the most recent window against the preceding
// window of equal length
// ⭐ SSOT: 모멘텀 계산은 여기서만
type MomentumCalculator struct {
	window    int
	smoothing float64
}

// NewMomentumCalculator creates a momentum calculator.
// window is the length in days of both compared windows.
func NewMomentumCalculator(window int, smoothing float64) *MomentumCalculator {
	return &MomentumCalculator{
		window:    window,
		smoothing: smoothing,
	}
}

// Window returns the compared window length
func (m *MomentumCalculator) Window() int {
	return m.window
}

// Calculate returns (cur - prev) / (prev + smoothing) when the denominator is
// positive, else the signed difference cur - prev. Never NaN or Inf.
func (m *MomentumCalculator) Calculate(cur, prev float64) float64 {
	denominator := prev + m.smoothing
	if denominator > 0 {
		return (cur - prev) / denominator
	}
	return cur - prev
}

// calculateAt evaluates momentum of counter c at offset end
func (m *MomentumCalculator) calculateAt(w *counterWindows, c, end int) float64 {
	cur := w.windowSum(c, end, m.window)
	prev := w.windowSum(c, end-m.window, m.window)
	return m.Calculate(cur, prev)
}
