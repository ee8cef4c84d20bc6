package domain

var Tables = []interface{}{
	// Accounts
	&User{},
	&UserProfile{},
	// Catalog
	&MenuItem{},
	&Topping{},
	// Orders
	&Order{},
	&OrderItem{},
	// Payments
	&Transaction{},
}
