package domain

import "net/url"

// Opener is the OS capability to query and launch another installed application by URL.
type Opener interface {
	// CanOpen reports whether an installed application can handle the URL.
	CanOpen(u *url.URL) bool

	// Open asks the OS to open the URL. The completion is called once with the outcome
	// of the request, possibly from another goroutine.
	Open(u *url.URL, completion func(success bool))
}
