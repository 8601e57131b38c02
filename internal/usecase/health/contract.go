package health

import "context"

// OracleChecker checks ranking oracle availability.
type OracleChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks cache store availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
