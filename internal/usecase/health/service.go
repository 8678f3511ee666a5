package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	src  SourcePinger
	gens GenerationProvider
}

// New creates a Service.
func New(src SourcePinger, gens GenerationProvider) *Service {
	return &Service{src: src, gens: gens}
}

// Check runs health checks against all components. A missing generation is
// degraded, not fatal: queries fail but the server can still rebuild.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.src.Ping(ctx); err != nil {
		checks["source"] = CheckError
	} else {
		checks["source"] = CheckOK
	}

	if _, err := s.gens.Current(); err != nil {
		checks["index"] = CheckError
	} else {
		checks["index"] = CheckOK
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
