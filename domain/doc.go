// Package domain defines the core data structures of the UPI scanner.
// It contains the payment application model, scan events and user preferences,
// as well as the interfaces for the external collaborators (camera capture,
// the OS launcher, the key-value store) and the repository contracts used for persistence.
//
// This package keeps the scan-to-dispatch pipeline independent of the
// platform it runs on. The camera, the OS and the storage engine are all
// reached through the interfaces declared here.
package domain
