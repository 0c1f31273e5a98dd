package models

// Tables lists every model owned by the service, in migration order.
func Tables() []interface{} {
	return []interface{}{
		&Match{},
		&WaitingApplicant{},
		&MatchParticipant{},
		&EarningsRecord{},
		&MonthlySettlement{},
		&SettlementPayment{},
		&User{},
		&AppSetting{},
	}
}
