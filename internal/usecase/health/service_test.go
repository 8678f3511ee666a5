package health

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/index"
)

// --- Mocks ---

type mockSourcePinger struct {
	err error
}

func (m *mockSourcePinger) Ping(_ context.Context) error { return m.err }

type mockGenerationProvider struct {
	err error
}

func (m *mockGenerationProvider) Current() (*index.Generation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &index.Generation{}, nil
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockSourcePinger{}, &mockGenerationProvider{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["source"] != CheckOK {
		t.Errorf("expected source %q, got %q", CheckOK, r.Checks["source"])
	}
	if r.Checks["index"] != CheckOK {
		t.Errorf("expected index %q, got %q", CheckOK, r.Checks["index"])
	}
}

func TestCheck_SourceError(t *testing.T) {
	svc := New(&mockSourcePinger{err: errors.New("conn refused")}, &mockGenerationProvider{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["source"] != CheckError {
		t.Errorf("expected source %q, got %q", CheckError, r.Checks["source"])
	}
	if r.Checks["index"] != CheckOK {
		t.Errorf("expected index %q, got %q", CheckOK, r.Checks["index"])
	}
}

func TestCheck_NoGeneration(t *testing.T) {
	svc := New(&mockSourcePinger{}, &mockGenerationProvider{err: errors.New("no generation")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["source"] != CheckOK {
		t.Errorf("expected source %q, got %q", CheckOK, r.Checks["source"])
	}
	if r.Checks["index"] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks["index"])
	}
}

func TestCheck_BothFail(t *testing.T) {
	svc := New(
		&mockSourcePinger{err: errors.New("source down")},
		&mockGenerationProvider{err: errors.New("no generation")},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["source"] != CheckError {
		t.Error("expected source error")
	}
	if r.Checks["index"] != CheckError {
		t.Error("expected index error")
	}
}
