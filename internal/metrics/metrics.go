// Package metrics holds prometheus collectors of the service.
// Collectors are registered in the default registry and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values of LoginsTotal and PasswordResetsTotal
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	AccessTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_access_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
	)

	RefreshTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued",
		},
	)

	RefreshTokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_tokens_revoked_total",
			Help: "Total number of refresh tokens revoked",
		},
	)

	PasswordResetRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_password_reset_requests_total",
			Help: "Total number of password reset tokens created",
		},
	)

	PasswordResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Total number of password reset confirmations by result",
		},
		[]string{"result"},
	)

	PasswordResetMailFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_password_reset_mail_failures_total",
			Help: "Total number of reset links that could not be delivered",
		},
	)
)
