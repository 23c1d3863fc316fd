package models

// All lists every model migrated at startup.
func All() []interface{} {
	return []interface{}{
		&PaymentGateway{},
		&PaymentMethod{},
		&PaymentTransaction{},
		&UpiTransaction{},
		&PaymentLink{},
		&WebhookEvent{},
		&Invoice{},
	}
}
