package core

import "fmt"

// Operation represents a type of action that can be performed on the exchange.
type Operation int

// Operation constants define all supported exchange operations.
const (
	// OpSubmitOrder places a new order.
	OpSubmitOrder Operation = iota
	// OpUpdateOrder changes the price of an open order.
	OpUpdateOrder
	// OpCancelOrder cancels an open order.
	OpCancelOrder
	// OpGetTicker retrieves public ticker data for a symbol.
	OpGetTicker
	// OpRetrieveOrders retrieves the open orders for a symbol.
	OpRetrieveOrders
	// OpIncreasePosition opens or grows a margin position.
	OpIncreasePosition
	// OpRetrievePositions retrieves the active margin positions.
	OpRetrievePositions
)

var operationNames = [...]string{
	"SUBMIT_ORDER",
	"UPDATE_ORDER",
	"CANCEL_ORDER",
	"GET_TICKER",
	"RETRIEVE_ORDERS",
	"INCREASE_POSITION",
	"RETRIEVE_POSITIONS",
}

// String returns the string representation of the operation.
func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

// RequiresAuth reports whether the operation is sent to the authenticated API.
func (o Operation) RequiresAuth() bool {
	return o != OpGetTicker
}
