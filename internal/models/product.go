package models

// ProductCredits maps a store product id to the credit amount it grants.
// Unknown product ids are rejected before any verifier call.
var ProductCredits = map[string]int64{
	"credits_100":  100,
	"credits_500":  500,
	"credits_1000": 1000,
	"credits_2500": 2500,
}

func CreditsFor(productID string) (int64, bool) {
	c, ok := ProductCredits[productID]
	return c, ok
}
