package transform

// gatewayStatus maps Juspay payment gateway status codes to their meaning.
var gatewayStatus = map[int]string{
	10: "Newly created order. This is the status if transaction is not triggered for an order",
	20: "Transaction is pending. Juspay system is not able to find a gateway to process a transaction",
	21: "Successful transaction",
	22: "User input is not accepted by the underlying PG",
	23: "Authentication is in progress",
	26: "User did not complete authentication",
	27: "User completed authentication, but the bank refused the transaction.",
	28: "Transaction status is pending from bank",
	29: "COD Initiated Successfully",
	36: "Transaction is automatically refunded",
}

// GatewayStatusText returns the description for a gateway code, or "" when
// the code is unknown.
func GatewayStatusText(code int) string {
	return gatewayStatus[code]
}
