// Package catalog holds the registry of known UPI payment applications.
package catalog

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tfkr-ae/upiscan/domain"
)

var (
	// ErrEmptyID is returned when a catalog entry has no identifier.
	ErrEmptyID = errors.New("application id is empty")
	// ErrEmptyScheme is returned when a catalog entry has no URL scheme.
	ErrEmptyScheme = errors.New("application url scheme is empty")
	// ErrDuplicateID is returned when two catalog entries share an identifier.
	ErrDuplicateID = errors.New("duplicate application id")
	// ErrDuplicatePackage is returned when two catalog entries share a package identifier.
	ErrDuplicatePackage = errors.New("duplicate application package id")
)

// defaultApplications is the built-in catalog, in display order.
var defaultApplications = []domain.PaymentApplication{
	{ID: "gpay", DisplayName: "Google Pay", URLScheme: "gpay", FallbackIcon: "g.circle.fill", PackageID: "com.google.paisa"},
	{ID: "phonepe", DisplayName: "PhonePe", URLScheme: "phonepe", FallbackIcon: "p.circle.fill", PackageID: "com.phonepe.PhonePeApp"},
	{ID: "paytm", DisplayName: "Paytm", URLScheme: "paytmmp", FallbackIcon: "p.square.fill", PackageID: "net.one97.paytm"},
	{ID: "bhim", DisplayName: "BHIM", URLScheme: "upi", FallbackIcon: "b.circle.fill", PackageID: "in.org.npci.ios.upiapp"},
	{ID: "whatsapp", DisplayName: "WhatsApp Pay", URLScheme: "whatsapp", FallbackIcon: "message.circle.fill", PackageID: "net.whatsapp.WhatsApp"},
	{ID: "amazonpay", DisplayName: "Amazon Pay", URLScheme: "amazonpay", FallbackIcon: "a.circle.fill", PackageID: "com.amazon.mobile.shopping"},
	{ID: "cred", DisplayName: "CRED", URLScheme: "credpay", FallbackIcon: "c.circle.fill", PackageID: "com.dreamplug.CRED"},
	{ID: "mobikwik", DisplayName: "MobiKwik", URLScheme: "mobikwik", FallbackIcon: "m.circle.fill", PackageID: "com.mobikwik"},
	{ID: "payzapp", DisplayName: "PayZapp", URLScheme: "payzapp", FallbackIcon: "h.circle.fill", PackageID: "com.hdfcbank.payzapp"},
	{ID: "paytmpb", DisplayName: "Paytm Bank", URLScheme: "paytmpb", FallbackIcon: "p.circle", PackageID: "com.paytmbank.ppbl"},
	{ID: "kotak811", DisplayName: "Kotak 811", URLScheme: "kotak811", FallbackIcon: "k.circle.fill", PackageID: "com.kotak811mobilebankingapp.instantsavingsupiscanandpayrecharge"},
}

// Catalog is an immutable, ordered registry of payment applications.
type Catalog struct {
	apps      []domain.PaymentApplication
	byID      map[string]int
	byPackage map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultApplications...)
	if err != nil {
		// the built-in table is validated by the package tests
		panic(fmt.Sprintf("building default catalog : %v", err))
	}
	return c
}

// New builds a catalog from the given applications, keeping their order.
// Identifiers and package identifiers must be unique and every entry needs a URL scheme.
func New(apps ...domain.PaymentApplication) (*Catalog, error) {
	c := &Catalog{
		apps:      make([]domain.PaymentApplication, 0, len(apps)),
		byID:      make(map[string]int, len(apps)),
		byPackage: make(map[string]int, len(apps)),
	}
	for _, app := range apps {
		if app.ID == "" {
			return nil, ErrEmptyID
		}
		if app.URLScheme == "" {
			return nil, fmt.Errorf("%w : %s", ErrEmptyScheme, app.ID)
		}
		if _, ok := c.byID[app.ID]; ok {
			return nil, fmt.Errorf("%w : %s", ErrDuplicateID, app.ID)
		}
		if _, ok := c.byPackage[app.PackageID]; ok {
			return nil, fmt.Errorf("%w : %s", ErrDuplicatePackage, app.PackageID)
		}
		c.byID[app.ID] = len(c.apps)
		c.byPackage[app.PackageID] = len(c.apps)
		c.apps = append(c.apps, app)
	}
	return c, nil
}

// Applications returns a copy of every catalog entry in catalog order.
func (c *Catalog) Applications() []domain.PaymentApplication {
	apps := make([]domain.PaymentApplication, len(c.apps))
	copy(apps, c.apps)
	return apps
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.apps)
}

// Lookup returns the application with the given identifier.
func (c *Catalog) Lookup(id string) (domain.PaymentApplication, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.PaymentApplication{}, false
	}
	return c.apps[i], true
}

// LookupPackage returns the application with the given package identifier.
func (c *Catalog) LookupPackage(packageID string) (domain.PaymentApplication, bool) {
	i, ok := c.byPackage[packageID]
	if !ok {
		return domain.PaymentApplication{}, false
	}
	return c.apps[i], true
}

// Installed returns the applications whose URL scheme the opener reports as launch-capable,
// preserving catalog order. An application that cannot be queried is treated as not installed.
func (c *Catalog) Installed(opener domain.Opener) []domain.PaymentApplication {
	installed := make([]domain.PaymentApplication, 0, len(c.apps))
	if opener == nil {
		return installed
	}
	for _, app := range c.apps {
		probe, err := url.Parse(app.URLScheme + "://")
		if err != nil {
			continue
		}
		if opener.CanOpen(probe) {
			installed = append(installed, app)
		}
	}
	return installed
}
