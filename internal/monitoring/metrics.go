package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refbot_registrations_total",
			Help: "Accounts created",
		},
	)

	ReferralCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refbot_referral_credits_total",
			Help: "Referral bonuses credited to referrers",
		},
	)

	WithdrawalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_withdrawal_requests_total",
			Help: "Withdrawal request attempts by result",
		},
		[]string{"result"},
	)

	WithdrawalTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_withdrawal_transitions_total",
			Help: "Withdrawal status changes by target status",
		},
		[]string{"status"},
	)

	MembershipChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_membership_checks_total",
			Help: "Channel membership lookups by result",
		},
		[]string{"result"},
	)

	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_payouts_total",
			Help: "Automated payout attempts by result",
		},
		[]string{"result"},
	)
)
