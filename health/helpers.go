package health

import "time"

func newStatus(component, level, message string) Status {
	return Status{
		Component: component,
		Healthy:   level == "healthy",
		Status:    level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy returns a healthy status for component.
func NewHealthy(component, message string) Status {
	return newStatus(component, "healthy", message)
}

// NewDegraded returns a degraded status: the component is up but impaired,
// like the mirror running without a broker connection.
func NewDegraded(component, message string) Status {
	return newStatus(component, "degraded", message)
}

// NewUnhealthy returns an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, "unhealthy", message)
}

// Aggregate folds sub-statuses into one status under the strict rule: any
// unhealthy sub makes the aggregate unhealthy, otherwise any degraded sub
// makes it degraded. The monitor starts from this result and then relaxes
// it for non-core failures.
func Aggregate(component string, subs []Status) Status {
	worst := "healthy"
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			worst = "unhealthy"
		case sub.IsDegraded() && worst == "healthy":
			worst = "degraded"
		}
	}

	message := "all components healthy"
	switch {
	case len(subs) == 0:
		message = "no components to aggregate"
	case worst == "unhealthy":
		message = "one or more components unhealthy"
	case worst == "degraded":
		message = "one or more components degraded"
	}

	agg := newStatus(component, worst, message)
	agg.SubStatuses = append([]Status(nil), subs...)
	return agg
}
