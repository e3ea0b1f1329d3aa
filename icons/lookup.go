package icons

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnexpectedStatus is returned when the lookup endpoint answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected lookup status")
	// ErrNotJSON is returned when the lookup body is not a JSON document.
	ErrNotJSON = errors.New("lookup response is not json")
	// ErrEmptyResults is returned when the lookup returned no usable artwork.
	ErrEmptyResults = errors.New("lookup returned no artwork")
)

// LookupResponse is the body returned by the icon lookup endpoint.
type LookupResponse struct {
	Results []LookupResult `json:"results"`
}

// LookupResult holds the artwork fields of a single lookup result.
type LookupResult struct {
	ArtworkURL512 string `json:"artworkUrl512,omitempty"`
	ArtworkURL100 string `json:"artworkUrl100,omitempty"`
	ArtworkURL60  string `json:"artworkUrl60,omitempty"`
}

// Artwork returns the highest resolution artwork URL of the first result,
// skipping empty fields. The 60px artwork is never selected.
func (r LookupResponse) Artwork() (string, error) {
	if len(r.Results) == 0 {
		return "", ErrEmptyResults
	}
	first := r.Results[0]
	if first.ArtworkURL512 != "" {
		return first.ArtworkURL512, nil
	}
	if first.ArtworkURL100 != "" {
		return first.ArtworkURL100, nil
	}
	return "", ErrEmptyResults
}

// readBody returns the decompressed body of a lookup response.
// gzip and br encoded bodies are decoded according to Content-Encoding. A body sent
// without an encoding is sniffed, and a gzip stream is inflated anyway.
func readBody(res *http.Response) ([]byte, error) {
	var reader io.Reader = res.Body
	switch res.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(res.Body)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(res.Body)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading lookup body : %w", err)
	}

	if res.Header.Get("Content-Encoding") == "" && mimetype.Detect(body).Is("application/gzip") {
		return gunzip(body)
	}
	return body, nil
}

func gunzip(body []byte) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoded, err := io.ReadAll(gzipReader)
	if err != nil {
		return nil, fmt.Errorf("inflating lookup body : %w", err)
	}
	return decoded, nil
}

// decodeLookup validates and decodes a lookup response.
func decodeLookup(res *http.Response) (LookupResponse, error) {
	var lookup LookupResponse
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return lookup, fmt.Errorf("%w : %s", ErrUnexpectedStatus, res.Status)
	}

	body, err := readBody(res)
	if err != nil {
		return lookup, err
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return lookup, ErrNotJSON
	}

	if err := json.Unmarshal(body, &lookup); err != nil {
		return lookup, fmt.Errorf("unmarshalling lookup : %w", err)
	}
	return lookup, nil
}
