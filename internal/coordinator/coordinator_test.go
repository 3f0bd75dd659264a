package coordinator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/local/rollscan/internal/voter"
)

type event struct {
	page  int
	start bool
}

// recordingExtractor returns page-number voters and logs start/end order.
type recordingExtractor struct {
	mu       sync.Mutex
	events   []event
	inflight int
	peak     int
	perPage  func(page int) int
	fail     map[int]bool
}

func (r *recordingExtractor) ExtractPage(ctx context.Context, p Page) ([]voter.Voter, error) {
	r.mu.Lock()
	r.events = append(r.events, event{p.Number, true})
	r.inflight++
	if r.inflight > r.peak {
		r.peak = r.inflight
	}
	r.mu.Unlock()

	time.Sleep(time.Duration(10-p.Number%3*3) * time.Millisecond)

	r.mu.Lock()
	r.inflight--
	r.events = append(r.events, event{p.Number, false})
	r.mu.Unlock()

	if r.fail[p.Number] {
		return nil, errors.New("render failed")
	}
	n := 1
	if r.perPage != nil {
		n = r.perPage(p.Number)
	}
	out := make([]voter.Voter, n)
	for i := range out {
		out[i] = voter.Voter{EpicNo: fmt.Sprintf("P%02dV%d", p.Number, i), OriginalPage: p.Number}
	}
	return out, nil
}

type failingRemote struct{ calls int }

func (f *failingRemote) Convert(context.Context, string) ([]voter.Voter, error) {
	f.calls++
	return nil, errors.New("endpoint down")
}

type okRemote struct{}

func (okRemote) Convert(context.Context, string) ([]voter.Voter, error) {
	return []voter.Voter{{EpicNo: "ABC1234567"}}, nil
}

type captureReporter struct {
	mu       sync.Mutex
	statuses []string
}

func (c *captureReporter) Report(_ context.Context, _, status, _ string, _ map[string]any) {
	c.mu.Lock()
	c.statuses = append(c.statuses, status)
	c.mu.Unlock()
}

func tenPages(string) (int, error) { return 10, nil }

func TestLocalFallbackBatches(t *testing.T) {
	ext := &recordingExtractor{perPage: func(p int) int { return p % 4 }}
	remote := &failingRemote{}
	rep := &captureReporter{}
	c := New(remote, ext, PageCountFunc(tenPages), 2, DefaultSkipPages)
	c.Reporter = rep

	res, err := c.Digitize(context.Background(), Document{JobID: "j1", Path: "roll.pdf"})
	if err != nil {
		t.Fatalf("Digitize: %v", err)
	}
	if remote.calls != 1 || res.Source != SourceLocal || res.RemoteErr == nil {
		t.Errorf("remote calls=%d source=%s remoteErr=%v", remote.calls, res.Source, res.RemoteErr)
	}
	if res.Batches != 4 {
		t.Errorf("batches = %d, want 4", res.Batches)
	}
	want := 0
	for p := 3; p <= 10; p++ {
		want += p % 4
	}
	if len(res.Voters) != want {
		t.Errorf("voters = %d, want %d", len(res.Voters), want)
	}
	if ext.peak > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", ext.peak)
	}

	// every page of batch k ends before any page of batch k+1 starts
	batchOf := func(p int) int { return (p - 3) / 2 }
	ended := map[int]int{}
	for _, e := range ext.events {
		if e.page < 3 {
			t.Fatalf("page %d should have been skipped", e.page)
		}
		b := batchOf(e.page)
		if e.start && b > 0 && ended[b-1] != 2 {
			t.Fatalf("page %d started before batch %d finished", e.page, b-1)
		}
		if !e.start {
			ended[b]++
		}
	}
	if len(rep.statuses) == 0 || rep.statuses[0] != StatusProcessing {
		t.Errorf("statuses = %v", rep.statuses)
	}
	for i := 1; i < len(res.Voters); i++ {
		if res.Voters[i].OriginalPage < res.Voters[i-1].OriginalPage {
			t.Fatalf("voters out of page order at %d", i)
		}
	}
}

func TestRemoteSuccessSkipsLocal(t *testing.T) {
	ext := &recordingExtractor{}
	c := New(okRemote{}, ext, PageCountFunc(tenPages), 2, DefaultSkipPages)
	res, err := c.Digitize(context.Background(), Document{Path: "roll.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceRemote || len(res.Voters) != 1 || len(ext.events) != 0 {
		t.Errorf("res = %+v, local events = %d", res, len(ext.events))
	}
}

func TestFailedPagesContributeNothing(t *testing.T) {
	ext := &recordingExtractor{fail: map[int]bool{4: true, 7: true}}
	c := New(nil, ext, PageCountFunc(tenPages), 3, DefaultSkipPages)
	res, err := c.Digitize(context.Background(), Document{Path: "roll.pdf", Concurrency: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Voters) != 6 || len(res.FailedPages) != 2 || res.Batches != 2 {
		t.Errorf("voters=%d failed=%v batches=%d", len(res.Voters), res.FailedPages, res.Batches)
	}
	starts := 0
	for _, e := range ext.events {
		if e.start {
			starts++
		}
	}
	if starts != 8 {
		t.Errorf("pages attempted = %d, want 8 (no retries)", starts)
	}
}

type panicky struct{}

func (panicky) ExtractPage(context.Context, Page) ([]voter.Voter, error) { panic("boom") }

func TestPanickingPageIsFailed(t *testing.T) {
	c := New(nil, panicky{}, PageCountFunc(func(string) (int, error) { return 3, nil }), 2, DefaultSkipPages)
	res, err := c.Digitize(context.Background(), Document{Path: "x.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.FailedPages) != 1 || res.FailedPages[0] != 3 {
		t.Errorf("failed = %v", res.FailedPages)
	}
}

func TestCancelStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ext := &cancelAfterFirst{cancel: cancel}
	c := New(nil, ext, PageCountFunc(tenPages), 2, DefaultSkipPages)
	res, err := c.Digitize(ctx, Document{Path: "roll.pdf"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res.Batches != 1 || ext.calls != 2 {
		t.Errorf("batches=%d calls=%d", res.Batches, ext.calls)
	}
}

type cancelAfterFirst struct {
	mu     sync.Mutex
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) ExtractPage(context.Context, Page) ([]voter.Voter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.cancel()
	return nil, nil
}

func TestPageCountError(t *testing.T) {
	rep := &captureReporter{}
	c := New(nil, &recordingExtractor{}, PageCountFunc(func(string) (int, error) { return 0, errors.New("corrupt") }), 2, 2)
	c.Reporter = rep
	if _, err := c.Digitize(context.Background(), Document{Path: "bad.pdf"}); err == nil {
		t.Fatal("expected error")
	}
	if rep.statuses[len(rep.statuses)-1] != StatusError {
		t.Errorf("statuses = %v", rep.statuses)
	}
}

func TestSelectionAndBatches(t *testing.T) {
	if got := SelectPages(2, 2); len(got) != 0 {
		t.Errorf("SelectPages(2,2) = %v", got)
	}
	if got := SelectPages(5, 0); len(got) != 5 || got[0] != 1 {
		t.Errorf("SelectPages(5,0) = %v", got)
	}
	b := Batches([]int{3, 4, 5, 6, 7}, 2)
	if len(b) != 3 || len(b[2]) != 1 || b[2][0] != 7 {
		t.Errorf("Batches = %v", b)
	}
}

func TestJobTransitions(t *testing.T) {
	j := newJob(3)
	j.advance(InFlight)
	j.advance(Done)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on Done -> InFlight")
		}
	}()
	j.advance(InFlight)
}

type stubImageStrategy struct{ pages []int }

func (s *stubImageStrategy) Extract(_ context.Context, _ image.Image, page int, _ bool) []voter.Voter {
	s.pages = append(s.pages, page)
	return []voter.Voter{{OriginalPage: page}}
}

type stubRenderer struct{ err error }

func (s stubRenderer) RenderPage(string, int) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

type stubText struct{ calls int }

func (s *stubText) ExtractFile(_ context.Context, _ string, page int) ([]voter.Voter, error) {
	s.calls++
	return []voter.Voter{{OriginalPage: page, NameEn: "text"}}, nil
}

func TestAdapters(t *testing.T) {
	img := &stubImageStrategy{}
	ocr := OCRPages{Renderer: stubRenderer{}, Strategy: img}
	vs, err := ocr.ExtractPage(context.Background(), Page{Path: "a.pdf", Number: 5})
	if err != nil || len(vs) != 1 || img.pages[0] != 5 {
		t.Errorf("OCRPages = %v, %v", vs, err)
	}
	if _, err := (OCRPages{Renderer: stubRenderer{err: errors.New("x")}, Strategy: img}).ExtractPage(context.Background(), Page{Number: 1}); err == nil {
		t.Errorf("render error not surfaced")
	}

	txt := &stubText{}
	probes := 0
	auto := &AutoPages{
		Probe: TextLayerProbeFunc(func(string) (bool, error) { probes++; return true, nil }),
		Text:  TextPages{Strategy: txt},
		OCR:   ocr,
	}
	for i := 0; i < 3; i++ {
		if _, err := auto.ExtractPage(context.Background(), Page{Path: "digital.pdf", Number: 3 + i}); err != nil {
			t.Fatal(err)
		}
	}
	if probes != 1 || txt.calls != 3 {
		t.Errorf("probes=%d text calls=%d", probes, txt.calls)
	}
}
