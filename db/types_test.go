package db

import (
	"testing"
)

func TestMetadata_Scan(t *testing.T) {
	t.Run("should decode text and bytes", func(t *testing.T) {
		for _, value := range []any{`{"event":"opened"}`, []byte(`{"event":"opened"}`)} {
			var m Metadata
			if err := m.Scan(value); err != nil {
				t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
			}
			if m["event"] != "opened" {
				t.Fatalf("\nwanted:\nopened\ngot:\n%v", m)
			}
		}
	})

	t.Run("should return an empty map for NULL", func(t *testing.T) {
		var m Metadata
		if err := m.Scan(nil); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if m == nil || len(m) != 0 {
			t.Fatalf("\nwanted:\nempty map\ngot:\n%v", m)
		}
	})

	t.Run("should return an error for corrupt json", func(t *testing.T) {
		for _, value := range []any{`{"event":`, []byte(`not json`)} {
			var m Metadata
			if err := m.Scan(value); err == nil {
				t.Fatalf("\nwanted:\nerror\ngot:\nnil for %q", value)
			}
		}
	})

	t.Run("should reject unsupported types", func(t *testing.T) {
		var m Metadata
		if err := m.Scan(42); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})
}
