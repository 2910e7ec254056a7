package server

import (
	"errors"
	"reflect"
	"testing"

	"github.com/varko/masterlist/internal/store"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name     string
		datagram []byte
		want     Query
		wantErr  error
	}{
		{
			name:     "first batch",
			datagram: []byte("1" + firstCursor + "\x00"),
			want:     Query{Cursor: "0.0.0.0:0"},
		},
		{
			name:     "continuation cursor",
			datagram: []byte("1192.0.2.1:27015\x00"),
			want:     Query{Cursor: "192.0.2.1:27015"},
		},
		{
			name:     "filter suffix",
			datagram: []byte("1" + firstCursor + "\x00\\type\\d\x00"),
			want:     Query{Cursor: "0.0.0.0:0", Filter: `\type\d`},
		},
		{
			name:     "wrong type byte",
			datagram: []byte("q0.0.0.0:0\x00"),
			wantErr:  ErrNotAQuery,
		},
		{
			name:     "empty datagram",
			datagram: nil,
			wantErr:  ErrNotAQuery,
		},
		{
			name:     "cursor missing port",
			datagram: []byte("1192.0.2.1\x00"),
			wantErr:  ErrBadCursor,
		},
		{
			name:     "cursor bad ip",
			datagram: []byte("1999.0.2.1:27015\x00"),
			wantErr:  ErrBadCursor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.datagram)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseQuery() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueryFirst(t *testing.T) {
	if !(Query{Cursor: firstCursor}).First() {
		t.Error("zero cursor should be first")
	}
	if (Query{Cursor: "192.0.2.1:27015"}).First() {
		t.Error("non-zero cursor should not be first")
	}
}

func TestEncodeDecodeBatchRoundTrip(t *testing.T) {
	endpoints := []store.Endpoint{
		{IP: "192.0.2.1", Port: 27015},
		{IP: "198.51.100.200", Port: 65535},
	}

	wire, err := EncodeBatch(endpoints, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantLen := len(replyHeader) + 3*addrEntrySize
	if len(wire) != wantLen {
		t.Errorf("expected %d bytes, got %d", wantLen, len(wire))
	}

	got, final, err := DecodeBatch(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !final {
		t.Error("expected final batch")
	}
	if !reflect.DeepEqual(got, endpoints) {
		t.Errorf("round trip mismatch: %v != %v", got, endpoints)
	}
}

func TestEncodeBatchWithoutTerminator(t *testing.T) {
	wire, err := EncodeBatch([]store.Endpoint{{IP: "192.0.2.1", Port: 27015}}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, final, err := DecodeBatch(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final {
		t.Error("batch should not be final without terminator")
	}
	if len(got) != 1 {
		t.Errorf("expected 1 endpoint, got %d", len(got))
	}
}

func TestEncodeBatchRejectsNonIPv4(t *testing.T) {
	if _, err := EncodeBatch([]store.Endpoint{{IP: "2001:db8::1", Port: 27015}}, true); err == nil {
		t.Error("expected error for ipv6 endpoint")
	}
}

func TestDecodeBatchRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeBatch([]byte("nonsense")); !errors.Is(err, ErrShortReply) {
		t.Errorf("expected ErrShortReply, got %v", err)
	}
	truncated := append(append([]byte(nil), replyHeader...), 0x01, 0x02)
	if _, _, err := DecodeBatch(truncated); !errors.Is(err, ErrShortReply) {
		t.Errorf("expected ErrShortReply for ragged body, got %v", err)
	}
}
