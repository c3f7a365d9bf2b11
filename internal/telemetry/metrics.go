// Package telemetry holds the Prometheus collectors for checkout outcomes.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts successfully committed orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "njord_orders_created_total",
		Help: "Total number of orders created",
	})

	// ChargesDeclined counts definitive gateway declines.
	ChargesDeclined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "njord_charges_declined_total",
		Help: "Total number of charges declined by the payment gateway",
	})

	// GatewayTimeouts counts charge attempts with an unknown outcome.
	GatewayTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "njord_gateway_timeouts_total",
		Help: "Total number of payment gateway calls that timed out",
	})

	// UnreconciledCharges counts charges committed at the gateway whose
	// order row failed to persist.
	UnreconciledCharges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "njord_unreconciled_charges_total",
		Help: "Total number of charges recorded for manual reconciliation",
	})
)
