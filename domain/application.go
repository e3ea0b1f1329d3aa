package domain

// PaymentApplication is a catalog entry for a UPI capable payment application.
// Entries are created once at process start and never mutated.
//
// The JSON tags are the persisted encoding of the user's selected application.
type PaymentApplication struct {
	ID           string `json:"id"`       // Unique, stable identifier (e.g. "gpay").
	DisplayName  string `json:"name"`     // Human-readable name shown to the user.
	URLScheme    string `json:"scheme"`   // URL scheme used to build deep links, never empty.
	FallbackIcon string `json:"iconName"` // Icon token used when no remote icon is cached.
	PackageID    string `json:"bundleId"` // Bundle / package identifier, the icon cache key.
}

// String returns the display name of the application.
func (app PaymentApplication) String() string {
	return app.DisplayName
}
