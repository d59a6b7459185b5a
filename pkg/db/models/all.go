package models

// All lists every table the module owns, in dependency order.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&OrderRefund{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
