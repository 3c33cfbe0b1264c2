package models

import "time"

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformMacOS   Platform = "macos"
)

// Valid reports whether p is one of the closed platform set. Input validation
// upstream should already guarantee this; the service refuses to proceed otherwise.
func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformMacOS:
		return true
	}
	return false
}

// Purchase is the immutable ledger row proving a purchase id has been credited.
// PurchaseID is the platform-issued identifier and globally unique.
type Purchase struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	PurchaseID         string    `json:"purchase_id"`
	ProductID          string    `json:"product_id"`
	Platform           Platform  `json:"platform"`
	VerificationData   string    `json:"-"`
	VerificationResult []byte    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}
