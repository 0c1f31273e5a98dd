// Package metrics publishes the process counters of the match market through
// expvar under the "matchmarket" map.
package metrics

import "expvar"

var counters = expvar.NewMap("matchmarket")

const (
	OffersMade            = "offers_made"
	OffersExpired         = "offers_expired"
	OffersSubmitted       = "offers_submitted"
	PaymentsConfirmed     = "payments_confirmed"
	MatchesAutoCancelled  = "matches_auto_cancelled"
	SettlementsRecomputed = "settlements_recomputed"
	SettlementsOverpaid   = "settlements_overpaid"
	NotificationsFailed   = "notifications_failed"
)

func Inc(name string) {
	counters.Add(name, 1)
}

// Value returns the current count for name, zero when it was never touched.
func Value(name string) int64 {
	if v, ok := counters.Get(name).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}
