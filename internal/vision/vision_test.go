package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/local/rollscan/internal/ai"
)

type scriptedClient struct {
	replies []string
	errs    []error
	models  []string
}

func (c *scriptedClient) Name() string { return "fake" }

func (c *scriptedClient) Do(_ context.Context, req ai.Request) (ai.Response, error) {
	i := len(c.models)
	c.models = append(c.models, req.Model)
	if i < len(c.errs) && c.errs[i] != nil {
		return ai.Response{}, c.errs[i]
	}
	if i < len(c.replies) {
		return ai.Response{Text: c.replies[i]}, nil
	}
	return ai.Response{Text: "nope"}, nil
}

func newTestStrategy(c ai.Client) (*Strategy, *[]time.Duration) {
	var slept []time.Duration
	s := New(c, DefaultSchedule([]string{"m0", "m1", "m2"}), 0)
	s.Jitter = func() time.Duration { return 0 }
	s.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestSchedule(t *testing.T) {
	s := DefaultSchedule([]string{"a", "b", "c"})
	for i, want := range []string{"a", "b", "c", "a", "b", "c"} {
		if got := s.ModelFor(i); got != want {
			t.Errorf("ModelFor(%d) = %q, want %q", i, got, want)
		}
	}
	if got := s.DelayFor(0, 0); got != 1500*time.Millisecond {
		t.Errorf("DelayFor(0) = %v", got)
	}
	if got := s.DelayFor(2, 200*time.Millisecond); got != 4700*time.Millisecond {
		t.Errorf("DelayFor(2) = %v", got)
	}
	if st := s.Next(5, errors.New("x"), 0); st.Outcome != Exhausted {
		t.Errorf("Next(5) = %v", st.Outcome)
	}
	if st := s.Next(1, errors.New("x"), 0); st.Outcome != Retry || st.NextModel != "c" {
		t.Errorf("Next(1) = %+v", st)
	}
	if st := s.Next(3, nil, 0); st.Outcome != Success {
		t.Errorf("Next on success = %v", st.Outcome)
	}
}

func TestRetriesMalformedThenSucceeds(t *testing.T) {
	c := &scriptedClient{replies: []string{
		"sorry, I cannot help",
		"[{\"name\": \"Ravi\",",
		"```json\n[{\"name\":\"Ravi\",\"id\":\"ABC12O4567\",\"age\":34}]\n```",
	}}
	s, slept := newTestStrategy(c)

	vs := s.Extract(context.Background(), []byte("img"), "image/jpeg", 7, false)
	if len(vs) != 1 {
		t.Fatalf("got %d voters", len(vs))
	}
	if len(c.models) != 3 || c.models[2] != "m2" {
		t.Errorf("models = %v", c.models)
	}
	v := vs[0]
	if v.NameEn != "Ravi" || v.EpicNo != "ABC1204567" || v.Age != "34" || v.OriginalPage != 7 {
		t.Errorf("voter = %+v", v)
	}
	if len(*slept) != 2 || (*slept)[0] != 1500*time.Millisecond || (*slept)[1] != 3000*time.Millisecond {
		t.Errorf("slept = %v", *slept)
	}
}

func TestExhaustionReturnsEmpty(t *testing.T) {
	c := &scriptedClient{errs: []error{ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited, nil}}
	s, _ := newTestStrategy(c)
	vs := s.Extract(context.Background(), []byte("img"), "image/jpeg", 1, false)
	if vs == nil || len(vs) != 0 {
		t.Fatalf("got %v, want empty slice", vs)
	}
	want := []string{"m0", "m1", "m2", "m0", "m1", "m2"}
	if len(c.models) != len(want) {
		t.Fatalf("attempts = %d", len(c.models))
	}
	for i := range want {
		if c.models[i] != want[i] {
			t.Errorf("attempt %d model = %q, want %q", i, c.models[i], want[i])
		}
	}
}

func TestCancelledSleepStops(t *testing.T) {
	c := &scriptedClient{}
	s, _ := newTestStrategy(c)
	s.Sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	if _, err := s.Records(context.Background(), nil, "image/jpeg", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(c.models) != 1 {
		t.Errorf("attempts = %d", len(c.models))
	}
}

func TestParseRecordsShapes(t *testing.T) {
	cases := map[string]int{
		`[{"name":"A","id":"ABC1234567"},{"name":"B","id":"DEF1234567"}]`:          2,
		`Here you go: {"name":"A","id":"ABC1234567","box":[1,2,3,4]} done`:          1,
		`{"voters":[{"name":"A"},{"name":"B"},{"name":"C"}]}`:                        3,
		`[]`:                                                                         0,
		"```\n[{\"name\":\"A\"}]\n```":                                               1,
	}
	for in, want := range cases {
		recs, err := ParseRecords(in)
		if err != nil {
			t.Errorf("ParseRecords(%q): %v", in, err)
			continue
		}
		if len(recs) != want {
			t.Errorf("ParseRecords(%q) = %d records, want %d", in, len(recs), want)
		}
	}

	recs, _ := ParseRecords(`{"name":"A","id":"ABC1234567","box":[1,2,3,4]}`)
	if len(recs[0].Box) != 4 || recs[0].Gender != "" {
		t.Errorf("record = %+v", recs[0])
	}

	for _, bad := range []string{"no json here", `[1, 2]`, `["a"]`, `{"voters": 3`} {
		if _, err := ParseRecords(bad); err == nil {
			t.Errorf("ParseRecords(%q) succeeded", bad)
		}
	}
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCropNormalized(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	b64, err := CropNormalized(img, []float64{100, 500, 500, 1000}, BoxPadding)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := base64.StdEncoding.DecodeString(b64)
	crop, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	// x: 100-10 .. 200 (clamped), y: 10-10 .. 50+10
	if crop.Bounds().Dx() != 110 || crop.Bounds().Dy() != 60 {
		t.Errorf("crop size = %v", crop.Bounds())
	}

	for _, bad := range [][]float64{{1, 2, 3}, {500, 0, 100, 10}, {0, 0, 1200, 10}} {
		if _, err := CropNormalized(img, bad, 0); err == nil {
			t.Errorf("box %v accepted", bad)
		}
	}
}

func TestExtractWithPhotos(t *testing.T) {
	c := &scriptedClient{replies: []string{`[{"name":"A","id":"ABC1234567","box":[100,100,600,400]},{"name":"B","id":"DEF1234567","box":[0,0]}]`}}
	s, _ := newTestStrategy(c)
	vs := s.Extract(context.Background(), testJPEG(t, 100, 100), "image/jpeg", 3, true)
	if len(vs) != 2 {
		t.Fatalf("got %d voters", len(vs))
	}
	if vs[0].PhotoBase64 == "" {
		t.Errorf("expected photo for valid box")
	}
	if vs[1].PhotoBase64 != "" {
		t.Errorf("expected no photo for invalid box")
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[string]error{
		"rate_limited": &ai.HTTPError{StatusCode: 429},
		"transient":    &ai.HTTPError{StatusCode: 503},
		"fatal":        &ai.HTTPError{StatusCode: 400},
		"timeout":      context.DeadlineExceeded,
		"parse":        &ParseError{Err: ErrNoJSON},
		"empty":        ai.ErrEmptyResponse,
	}
	for want, err := range cases {
		if got := ClassifyError(err); got != want {
			t.Errorf("ClassifyError(%v) = %q, want %q", err, got, want)
		}
	}
}

type countingLimiter struct{ acquired, released int }

func (c *countingLimiter) Acquire(context.Context, string, string) (func(), error) {
	c.acquired++
	return func() { c.released++ }, nil
}

func TestAttemptsTakeLimiterSlots(t *testing.T) {
	c := &scriptedClient{replies: []string{"garbage", `[{"name":"A","id":"ABC1234567"}]`}}
	s, _ := newTestStrategy(c)
	lim := &countingLimiter{}
	s.Limiter = lim
	if vs := s.Extract(context.Background(), []byte("img"), "image/jpeg", 1, false); len(vs) != 1 {
		t.Fatalf("got %d voters", len(vs))
	}
	if lim.acquired != 2 || lim.released != 2 {
		t.Errorf("acquired=%d released=%d", lim.acquired, lim.released)
	}
}
