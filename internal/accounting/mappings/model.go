package mappings

// Role names the ledger function an account plays in automatic entries.
type Role string

const (
	RoleSaleCash          Role = "sale.cash"
	RoleSaleRevenue       Role = "sale.revenue"
	RoleSaleTax           Role = "sale.tax"
	RolePurchaseInventory Role = "purchase.merchandise"
	RolePurchaseTax       Role = "purchase.tax"
	RolePurchasePayable   Role = "purchase.payable"
)

// DefaultCodes are the base chart accounts used when no override is stored.
var DefaultCodes = map[Role]string{
	RoleSaleCash:          "101",
	RoleSaleRevenue:       "701",
	RoleSaleTax:           "401",
	RolePurchaseInventory: "601",
	RolePurchaseTax:       "167",
	RolePurchasePayable:   "421",
}

// AccountMapping links a role to an account code.
type AccountMapping struct {
	Role        Role   `json:"role"`
	AccountCode string `json:"accountCode"`
}
