package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veriboard",
			Subsystem: "otp",
			Name:      "issued_total",
			Help:      "One-time codes issued.",
		},
		[]string{"purpose"},
	)

	otpVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veriboard",
			Subsystem: "otp",
			Name:      "verify_total",
			Help:      "One-time code verification outcomes.",
		},
		[]string{"purpose", "result"},
	)

	otpRateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veriboard",
			Subsystem: "otp",
			Name:      "rate_limited_total",
			Help:      "Code requests refused by the rate limiter.",
		},
		[]string{"purpose"},
	)

	otpDeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veriboard",
			Subsystem: "otp",
			Name:      "delivery_total",
			Help:      "Code email deliveries by transport and outcome.",
		},
		[]string{"purpose", "transport", "result"},
	)
)

func OTPIssued(purpose string) {
	otpIssuedTotal.WithLabelValues(purpose).Inc()
}

// OTPVerified records a verification attempt; result is "ok", "mismatch", "locked" or "missing".
func OTPVerified(purpose, result string) {
	otpVerifyTotal.WithLabelValues(purpose, result).Inc()
}

func OTPRateLimited(purpose string) {
	otpRateLimitedTotal.WithLabelValues(purpose).Inc()
}

func OTPDelivery(purpose, transport string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	if transport == "" {
		transport = "none"
	}
	otpDeliveryTotal.WithLabelValues(purpose, transport, result).Inc()
}
