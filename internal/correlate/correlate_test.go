package correlate

import (
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

func noise(w, h, ch int, seed int64) *imaging.Image {
	m := imaging.New(w, h, ch)
	r := rand.New(rand.NewSource(seed))
	for i := range m.Pix {
		m.Pix[i] = byte(r.Intn(256))
	}
	return m
}

func TestParseMethod(t *testing.T) {
	for m := SqDiff; m <= CCoeffNormed; m++ {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMethod(%q) = %v, %v", m.String(), got, err)
		}
	}
	if got, err := ParseMethod(" CCOEFF_NORMED "); err != nil || got != CCoeffNormed {
		t.Errorf("ParseMethod is not case-insensitive: %v, %v", got, err)
	}
	if _, err := ParseMethod("fourier"); err == nil {
		t.Error("expected error for unknown method")
	}
	if Method(9).Valid() {
		t.Error("Method(9) should be invalid")
	}
}

func TestMinMaxLocFirstOccurrence(t *testing.T) {
	s := &Surface{Width: 3, Height: 2, Values: []float32{
		1, 5, 0,
		5, 0, 2,
	}}
	minVal, maxVal, minLoc, maxLoc := s.MinMaxLoc()
	if minVal != 0 || minLoc != image.Pt(2, 0) {
		t.Errorf("min = %v at %v, want 0 at (2,0)", minVal, minLoc)
	}
	if maxVal != 5 || maxLoc != image.Pt(1, 0) {
		t.Errorf("max = %v at %v, want 5 at (1,0)", maxVal, maxLoc)
	}
}

func TestNativeFindsExactCopy(t *testing.T) {
	frame := noise(40, 30, 3, 7)
	want := image.Pt(13, 9)
	tmpl := frame.Region(image.Rect(want.X, want.Y, want.X+8, want.Y+6))

	s, err := Native{}.Correlate(frame, tmpl, CCoeffNormed)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if s.Width != 33 || s.Height != 25 {
		t.Fatalf("surface = %dx%d, want 33x25", s.Width, s.Height)
	}
	score, loc := s.MaxLoc()
	if loc != want {
		t.Errorf("MaxLoc = %v, want %v", loc, want)
	}
	if math.Abs(score-1) > 1e-4 {
		t.Errorf("score = %v, want ~1", score)
	}
}

func TestNativeMethodsAgreeOnLocation(t *testing.T) {
	frame := noise(24, 20, 1, 3)
	want := image.Pt(5, 11)
	tmpl := frame.Region(image.Rect(want.X, want.Y, want.X+6, want.Y+5))

	tests := []struct {
		method Method
		useMin bool
	}{
		{SqDiff, true},
		{SqDiffNormed, true},
		{CCorrNormed, false},
		{CCoeff, false},
		{CCoeffNormed, false},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			s, err := Native{}.Correlate(frame, tmpl, tt.method)
			if err != nil {
				t.Fatal(err)
			}
			minVal, _, minLoc, maxLoc := s.MinMaxLoc()
			loc := maxLoc
			if tt.useMin {
				loc = minLoc
				if math.Abs(minVal) > 1e-3 {
					t.Errorf("min = %v, want ~0", minVal)
				}
			}
			if loc != want {
				t.Errorf("location = %v, want %v", loc, want)
			}
		})
	}
}

func TestNativeNormalizedBounds(t *testing.T) {
	frame := noise(20, 20, 3, 11)
	tmpl := noise(5, 5, 3, 12)
	for _, m := range []Method{SqDiffNormed, CCorrNormed, CCoeffNormed} {
		s, err := Native{}.Correlate(frame, tmpl, m)
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range s.Values {
			if v < -1 || v > 1 {
				t.Fatalf("%v: value %v outside [-1,1]", m, v)
			}
		}
	}
}

func TestNativeFlatWindowScoresZero(t *testing.T) {
	frame := imaging.New(10, 10, 1)
	for i := range frame.Pix {
		frame.Pix[i] = 128
	}
	tmpl := noise(4, 4, 1, 5)

	s, err := Native{}.Correlate(frame, tmpl, CCoeffNormed)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range s.Values {
		if v != 0 {
			t.Fatalf("flat window scored %v, want 0", v)
		}
	}
}

func TestNativeWholeFrameTemplate(t *testing.T) {
	frame := noise(6, 4, 3, 2)
	s, err := Native{}.Correlate(frame, frame, CCoeffNormed)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Values) != 1 {
		t.Fatalf("surface has %d values, want 1", len(s.Values))
	}
	if math.Abs(float64(s.Values[0])-1) > 1e-4 {
		t.Errorf("score = %v, want ~1", s.Values[0])
	}
}

func TestNativeRejectsBadInputs(t *testing.T) {
	frame := noise(10, 10, 3, 1)
	tests := []struct {
		name   string
		frame  *imaging.Image
		tmpl   *imaging.Image
		method Method
	}{
		{"larger template", frame, noise(11, 4, 3, 2), CCoeffNormed},
		{"channel mismatch", frame, noise(4, 4, 1, 2), CCoeffNormed},
		{"empty template", frame, &imaging.Image{}, CCoeffNormed},
		{"nil frame", nil, noise(4, 4, 3, 2), CCoeffNormed},
		{"bad method", frame, noise(4, 4, 3, 2), Method(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (Native{}).Correlate(tt.frame, tt.tmpl, tt.method); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFastSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{1, 1}, {7, 8}, {1080, 1080}, {1921, 1944}, {97, 100},
	}
	for _, tt := range tests {
		if got := fastSize(tt.in); got != tt.want {
			t.Errorf("fastSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPreferFFT(t *testing.T) {
	frame := imaging.New(640, 360, 3)
	if preferFFT(frame, imaging.New(3, 3, 3)) {
		t.Error("3x3 template should use the direct product")
	}
	if !preferFFT(frame, imaging.New(100, 10, 3)) {
		t.Error("100x10 template should use the transform")
	}
}

func TestCrossFFTMatchesDirect(t *testing.T) {
	tests := []struct {
		name           string
		fw, fh, tw, th int
		ch             int
	}{
		{"gray odd sizes", 37, 23, 9, 7, 1},
		{"bgr", 50, 30, 12, 5, 3},
		{"bgra whole frame", 16, 12, 16, 12, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := noise(tt.fw, tt.fh, tt.ch, 21)
			tmpl := noise(tt.tw, tt.th, tt.ch, 22)
			sw, sh := tt.fw-tt.tw+1, tt.fh-tt.th+1

			direct := crossDirect(frame, tmpl, sw, sh)
			spectral := crossFFT(frame, tmpl, sw, sh)
			for i := range direct {
				if math.Abs(direct[i]-spectral[i]) > 1 {
					t.Fatalf("cross[%d] = %v via FFT, %v direct", i, spectral[i], direct[i])
				}
			}
		})
	}
}

func TestNativeLargeTemplateUsesTransform(t *testing.T) {
	frame := noise(160, 90, 3, 31)
	want := image.Pt(47, 61)
	tmpl := frame.Region(image.Rect(want.X, want.Y, want.X+60, want.Y+12))
	if !preferFFT(frame, tmpl) {
		t.Fatal("expected the transform path for this size")
	}

	s, err := Native{}.Correlate(frame, tmpl, CCoeffNormed)
	if err != nil {
		t.Fatal(err)
	}
	score, loc := s.MaxLoc()
	if loc != want {
		t.Errorf("MaxLoc = %v, want %v", loc, want)
	}
	if math.Abs(score-1) > 1e-4 {
		t.Errorf("score = %v, want ~1", score)
	}
}
