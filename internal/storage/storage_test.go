package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type failingSink struct{ saves int }

func (f *failingSink) Save(context.Context, string, string, []byte, string) (string, error) {
	f.saves++
	return "", errors.New("bucket unreachable")
}

func (f *failingSink) Open(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("bucket unreachable")
}

func TestLocalSaveOpen(t *testing.T) {
	l := Local{Dir: t.TempDir()}
	ctx := context.Background()
	if _, err := l.Save(ctx, "job1", "voters.csv", []byte("a,b"), "text/csv"); err != nil {
		t.Fatal(err)
	}
	b, err := l.Open(ctx, "job1", "voters.csv")
	if err != nil || string(b) != "a,b" {
		t.Fatalf("Open = %q, %v", b, err)
	}
	if _, err := l.Open(ctx, "job2", "voters.csv"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, err := l.Save(ctx, "../etc", "x", nil, ""); err == nil {
		t.Error("path traversal accepted")
	}
}

func TestMirroredToleratesArchiveFailure(t *testing.T) {
	arch := &failingSink{}
	m := Mirrored{Primary: Local{Dir: t.TempDir()}, Archive: arch}
	if _, err := m.Save(context.Background(), "j", "voters.json", []byte("[]"), "application/json"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if arch.saves != 1 {
		t.Errorf("archive saves = %d", arch.saves)
	}
	if _, err := m.Open(context.Background(), "other", "voters.json"); err == nil {
		t.Error("expected error when neither sink has the artifact")
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("rolls", "j1", "voters.csv"); got != "rolls/j1/voters.csv" {
		t.Errorf("ObjectKey = %q", got)
	}
	if got := ObjectKey("", "j1", "voters.csv"); got != "j1/voters.csv" {
		t.Errorf("ObjectKey = %q", got)
	}
}

func TestSealRoundTrip(t *testing.T) {
	plain := []byte("\ufeffEPIC No,Name\nABC1234567,Ravi\n")
	sealed, err := Seal(plain, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if !IsSealed(sealed) || bytes.Contains(sealed, []byte("Ravi")) {
		t.Fatal("sealed data leaks plaintext")
	}
	got, err := Unseal(sealed, "secret")
	if err != nil || !bytes.Equal(got, plain) {
		t.Fatalf("Unseal = %q, %v", got, err)
	}
	if _, err := Unseal(sealed, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := Unseal(plain, "secret"); !errors.Is(err, ErrNotSealed) {
		t.Errorf("plain data: %v", err)
	}
	again, _ := Seal(plain, "secret")
	if bytes.Equal(again, sealed) {
		t.Error("salt and nonce reused")
	}
}
