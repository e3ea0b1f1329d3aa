package upiscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// DefaultUserAgent is sent with icon lookups that do not set their own User-Agent.
const DefaultUserAgent = "upiscan/1.0"

// lookupRoundTripper sets the User-Agent on outgoing lookups and delegates to the base RoundTripper.
type lookupRoundTripper struct {
	userAgent string
	base      http.RoundTripper
}

// newLookupTransport creates the RoundTripper used by the icon resolver.
// The base transport dials TLS with utls to present a Chrome ClientHello,
// restricted to http/1.1.
func newLookupTransport() http.RoundTripper {
	transport := &http.Transport{}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		sniHost, _, err := net.SplitHostPort(addr)
		if err != nil {
			sniHost = addr
		}

		uTlsConfig := &utls.Config{
			ServerName: sniHost,
		}

		if transport.TLSClientConfig != nil {
			uTlsConfig.InsecureSkipVerify = transport.TLSClientConfig.InsecureSkipVerify
		}

		uConn := utls.UClient(tcpConn, uTlsConfig, utls.HelloChrome_Auto)

		if err := uConn.BuildHandshakeState(); err != nil {
			tcpConn.Close()
			return nil, fmt.Errorf("building handshake state : %w", err)
		}

		foundALPN := false
		// HelloChrome_Auto ignores uTlsConfig.NextProtos and offers h2,
		// the ALPN extension has to be rewritten before the handshake
		for _, ext := range uConn.Extensions {
			if alpnExt, ok := ext.(*utls.ALPNExtension); ok {
				alpnExt.AlpnProtocols = []string{"http/1.1"}
				foundALPN = true
				break
			}
		}

		if !foundALPN {
			tcpConn.Close()
			return nil, errors.New("could not find ALPNExtension")
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			tcpConn.Close()
			return nil, err
		}

		return uConn, nil
	}

	return &lookupRoundTripper{
		userAgent: DefaultUserAgent,
		base:      transport,
	}
}

// RoundTrip satisfies http.RoundTripper. Requests without a User-Agent are cloned
// and given the default one.
func (l *lookupRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", l.userAgent)
	}
	return l.base.RoundTrip(req)
}
