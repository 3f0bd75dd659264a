package statuscheck

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSummary(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusMethodNotAllowed)
    }))
    defer srv.Close()

    c := New(Options{
        Redis:        pingFunc(func(context.Context) error { return nil }),
        S3:           pingFunc(func(context.Context) error { return errors.New(strings.Repeat("x", 200)) }),
        ConverterURL: srv.URL,
        Provider:     "gemini",
        VisionAPIKey: "k",
    })
    c.lookPath = func(string) (string, error) { return "", errors.New("missing") }

    s := c.Summary(context.Background())
    if !s.Redis.OK || s.S3.OK || len(s.S3.Message) != 120 {
        t.Errorf("redis/s3 = %+v / %+v", s.Redis, s.S3)
    }
    if !s.Converter.OK {
        t.Errorf("converter = %+v", s.Converter)
    }
    if !s.Vision.OK || s.Tesseract.OK {
        t.Errorf("vision/tesseract = %+v / %+v", s.Vision, s.Tesseract)
    }
}

func TestSummaryUnconfigured(t *testing.T) {
    s := New(Options{}).Summary(context.Background())
    if s.Redis.OK || s.S3.OK || s.Converter.OK || s.Vision.OK {
        t.Errorf("summary = %+v", s)
    }
}
