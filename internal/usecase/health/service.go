package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckEmpty indicates a reachable but unpopulated component.
	CheckEmpty CheckResult = "empty"
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
	db          DBPinger
	counter     CollectionCounter
	collections []string
	table       TableSizer
}

// New creates a Service. counter and table can be nil.
func New(db DBPinger, counter CollectionCounter, collections []string, table TableSizer) *Service {
	return &Service{db: db, counter: counter, collections: collections, table: table}
}

// Check runs health checks against all components.
// An unreachable database is Unhealthy; an empty or missing collection
// or phenotype table is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		return Report{Status: Unhealthy, Checks: checks}
	}
	checks["database"] = CheckOK

	if s.counter != nil {
		for _, name := range s.collections {
			n, err := s.counter.Count(ctx, name)
			switch {
			case err != nil:
				checks["collection:"+name] = CheckError
			case n == 0:
				checks["collection:"+name] = CheckEmpty
			default:
				checks["collection:"+name] = CheckOK
			}
		}
	}

	if s.table != nil {
		if s.table.Len() == 0 {
			checks["phenotypes"] = CheckEmpty
		} else {
			checks["phenotypes"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
