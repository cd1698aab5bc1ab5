package indicator

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if !scalar.EqualWithinAbs(got, want, tol) {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

// feed runs prices through ind and returns every point.
func feed(ind Indicator, prices ...float64) Line {
	return trace(ind, prices)
}

// checkLine compares got against want, where NaN marks an unavailable position.
func checkLine(t *testing.T, label string, got Line, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: %d points, want %d", label, len(got), len(want))
	}
	for i, w := range want {
		v, ok := got.At(i)
		if wantOK := !math.IsNaN(w); ok != wantOK {
			t.Errorf("%s[%d]: available=%v, want %v", label, i, ok, wantOK)
			continue
		}
		if ok {
			assertClose(t, label, v, w, tol)
		}
	}
}

var nan = math.NaN()

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_RollingWindow(t *testing.T) {
	tests := []struct {
		name   string
		period int
		prices []float64
		want   []float64
	}{
		{"period3", 3, []float64{100, 102, 104, 103, 105}, []float64{nan, nan, 102, 103, 104}},
		{"period5", 5, []float64{10, 11, 12, 13, 14, 15, 16}, []float64{nan, nan, nan, nan, 12, 13, 14}},
		{"period1", 1, []float64{7, 9}, []float64{7, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkLine(t, "SMA", feed(NewSMA(tt.period), tt.prices...), tt.want, 1e-4)
		})
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_SeededWithMean(t *testing.T) {
	// alpha = 0.5: 102 seed, then 103*0.5+102*0.5, then 105*0.5+102.5*0.5
	got := feed(NewEMA(3), 100, 102, 104, 103, 105)
	checkLine(t, "EMA(3)", got, []float64{nan, nan, 102, 102.5, 103.75}, 1e-4)
}

func TestEMA_Recurrence(t *testing.T) {
	alpha := 2.0 / 6.0
	prices := []float64{44, 44.25, 44.50, 43.75, 44.50, 44.25, 44.00}
	seed := (44.0 + 44.25 + 44.50 + 43.75 + 44.50) / 5.0
	p6 := 44.25*alpha + seed*(1-alpha)
	p7 := 44.00*alpha + p6*(1-alpha)

	checkLine(t, "EMA(5)", feed(NewEMA(5), prices...), []float64{nan, nan, nan, nan, seed, p6, p7}, 1e-9)
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestWilder_SeedThenSmooth(t *testing.T) {
	// seed (100+102+104)/3 = 102, then (102*2+103)/3, then (102.3333*2+105)/3
	w := wilder{n: 3}
	want := []float64{nan, nan, 102, 102.3333, 103.2222}
	for i, x := range []float64{100, 102, 104, 103, 105} {
		seeded := w.add(x)
		if seeded != !math.IsNaN(want[i]) {
			t.Fatalf("input %d: seeded=%v", i, seeded)
		}
		if seeded {
			assertClose(t, "wilder(3)", w.avg, want[i], 1e-3)
		}
	}
}

func TestRSI_Period5(t *testing.T) {
	// Deltas +0.34 -0.25 -0.48 +0.72 +0.50 give avgGain 0.312, avgLoss 0.146,
	// so the first value is 68.112; Wilder smoothing over +0.27 +0.32 +0.42
	// continues to 72.219, 76.658, 81.509.
	got := feed(NewRSI(5), 44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84)
	checkLine(t, "RSI(5)", got, []float64{nan, nan, nan, nan, nan, 68.112, 72.219, 76.658, 81.509}, 0.2)
}

func TestRSI_Extremes(t *testing.T) {
	tests := []struct {
		name string
		step float64
		want float64
	}{
		{"all up", 1, 100},
		{"all down", -1, 0},
		{"flat", 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := make([]float64, 10)
			for i := range prices {
				prices[i] = 150 + tt.step*float64(i)
			}
			v, ok := feed(NewRSI(5), prices...).At(9)
			if !ok {
				t.Fatal("RSI(5) should be available after 10 closes")
			}
			assertClose(t, "RSI", v, tt.want, 1e-3)
		})
	}
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_LineIsFastMinusSlow(t *testing.T) {
	m := NewMACD(3, 6, 4)
	fast, slow := NewEMA(3), NewEMA(6)

	for i := 0; i < 20; i++ {
		p := 100 + float64(i%7)*1.5
		line, signal := m.Next(p)
		f, s := fast.Next(p), slow.Next(p)

		if line.OK != (i >= 5) {
			t.Fatalf("candle %d: line available=%v", i, line.OK)
		}
		if line.OK {
			assertClose(t, "MACD line", line.V, f.V-s.V, 1e-9)
		}
		// signal needs 4 line values on top of the slow warmup
		if signal.OK != (i >= 8) {
			t.Errorf("candle %d: signal available=%v", i, signal.OK)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Relative behavior
// ────────────────────────────────────────────────────────────

func TestIndicators_TrendingUp_Ordering(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	sma5, _ := feed(NewSMA(5), prices...).At(29)
	sma20, _ := feed(NewSMA(20), prices...).At(29)
	ema5, _ := feed(NewEMA(5), prices...).At(29)

	if sma5 <= sma20 {
		t.Errorf("SMA(5) should be > SMA(20) in uptrend: SMA5=%.2f, SMA20=%.2f", sma5, sma20)
	}
	if ema5 <= sma20 {
		t.Errorf("EMA(5) should be > SMA(20) in uptrend: EMA5=%.2f, SMA20=%.2f", ema5, sma20)
	}
}

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	prices := make([]float64, 21)
	for i := range prices {
		prices[i] = 100
	}
	prices[20] = 120

	sma, _ := feed(NewSMA(10), prices...).At(20)
	ema, _ := feed(NewEMA(10), prices...).At(20)
	if ema <= sma {
		t.Errorf("EMA should react more than SMA to a sudden jump: EMA=%.4f, SMA=%.4f", ema, sma)
	}
}
