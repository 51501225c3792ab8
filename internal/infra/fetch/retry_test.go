package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// scriptedFetcher returns the scripted errors in order, then succeeds.
type scriptedFetcher struct {
	errs  []error
	calls int
	data  *SectionData
}

func (f *scriptedFetcher) Fetch(ctx context.Context, domainName string, section domain.Section) (*SectionData, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.data, nil
}

func TestRetrying_SucceedsFirstTry(t *testing.T) {
	want := &SectionData{RecordTTL: time.Hour}
	f := &scriptedFetcher{data: want}
	r := NewRetrying(f, 3, time.Millisecond)

	got, err := r.Fetch(context.Background(), "example.com", domain.SectionDNS)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want passthrough data", got)
	}
	if f.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls)
	}
}

func TestRetrying_RetriesTransientErrors(t *testing.T) {
	want := &SectionData{}
	f := &scriptedFetcher{
		errs: []error{errors.New("timeout"), errors.New("connection reset")},
		data: want,
	}
	r := NewRetrying(f, 3, time.Millisecond)

	got, err := r.Fetch(context.Background(), "example.com", domain.SectionDNS)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want data from third attempt", got)
	}
	if f.calls != 3 {
		t.Errorf("fetcher called %d times, want 3", f.calls)
	}
}

func TestRetrying_ExhaustsBudget(t *testing.T) {
	transient := errors.New("still down")
	f := &scriptedFetcher{
		errs: []error{transient, transient, transient, transient, transient},
	}
	r := NewRetrying(f, 2, time.Millisecond)

	_, err := r.Fetch(context.Background(), "example.com", domain.SectionDNS)
	if !errors.Is(err, transient) {
		t.Errorf("err = %v, want final transient error", err)
	}
	// 1 initial attempt + 2 retries.
	if f.calls != 3 {
		t.Errorf("fetcher called %d times, want 3", f.calls)
	}
}

func TestRetrying_PermanentErrorNotRetried(t *testing.T) {
	perm := &Error{Code: CodeNXDomain, Section: domain.SectionDNS}
	f := &scriptedFetcher{errs: []error{perm, perm, perm}}
	r := NewRetrying(f, 5, time.Millisecond)

	_, err := r.Fetch(context.Background(), "gone.example", domain.SectionDNS)

	var fe *Error
	if !errors.As(err, &fe) || fe.Code != CodeNXDomain {
		t.Errorf("err = %v, want permanent nxdomain error", err)
	}
	if f.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls)
	}
}

func TestRetrying_ContextCancellationStopsRetries(t *testing.T) {
	f := &scriptedFetcher{
		errs: []error{errors.New("down"), errors.New("down"), errors.New("down")},
	}
	r := NewRetrying(f, 10, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Fetch(ctx, "example.com", domain.SectionDNS)
	if err == nil {
		t.Fatal("Fetch succeeded, want cancellation error")
	}
	if f.calls >= 10 {
		t.Errorf("fetcher called %d times after cancellation", f.calls)
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(&Error{Code: CodeNoRecords, Section: domain.SectionDNS}) {
		t.Error("typed error not recognized as permanent")
	}
	if !IsPermanent(errors.Join(errors.New("wrapped"), &Error{Code: CodeUnsupported})) {
		t.Error("wrapped typed error not recognized as permanent")
	}
	if IsPermanent(errors.New("timeout")) {
		t.Error("plain error recognized as permanent")
	}
	if IsPermanent(nil) {
		t.Error("nil recognized as permanent")
	}
}
