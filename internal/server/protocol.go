// Package server implements the UDP front-end that answers batched
// server list queries and feeds the stats collector.
package server

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/varko/masterlist/internal/store"
)

// Wire format constants for the batched list exchange.
const (
	queryType = '1'
	replyType = 'f'

	// firstCursor is the cursor clients send to request the first batch.
	firstCursor = "0.0.0.0:0"

	addrEntrySize = 6
)

var replyHeader = []byte{0xff, 0xff, 0xff, 0xff, replyType, '\n'}

var (
	ErrNotAQuery  = errors.New("not a list query")
	ErrBadCursor  = errors.New("malformed cursor")
	ErrShortReply = errors.New("reply truncated")
)

// Query is a parsed list request.
type Query struct {
	// Cursor is the last address of the previous batch, or firstCursor.
	Cursor string
	// Filter is the raw filter suffix. The front-end currently records
	// it but applies no filtering.
	Filter string
}

// First reports whether the query asks for the first batch.
func (q Query) First() bool {
	return q.Cursor == firstCursor
}

// ParseQuery decodes a query datagram. The datagram starts with '1',
// followed by a NUL-terminated cursor string and an optional filter.
func ParseQuery(datagram []byte) (Query, error) {
	if len(datagram) < 2 || datagram[0] != queryType {
		return Query{}, ErrNotAQuery
	}

	fields := strings.SplitN(string(datagram[1:]), "\x00", 3)
	cursor := strings.TrimSpace(fields[0])
	if cursor == "" {
		return Query{}, ErrBadCursor
	}
	if _, _, err := splitCursor(cursor); err != nil {
		return Query{}, fmt.Errorf("%w: %q", ErrBadCursor, cursor)
	}

	q := Query{Cursor: cursor}
	if len(fields) > 1 {
		q.Filter = strings.TrimRight(fields[1], "\x00")
	}
	return q, nil
}

func splitCursor(cursor string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(cursor)
	if err != nil {
		return "", 0, err
	}
	if net.ParseIP(host) == nil {
		return "", 0, fmt.Errorf("bad ip %q", host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("bad port %q", portStr)
	}
	return host, port, nil
}

// EncodeBatch packs endpoints into a reply datagram. Each entry is a
// 4-byte big-endian IPv4 address followed by a 2-byte big-endian port.
// When final is true a zero entry terminates the list.
func EncodeBatch(endpoints []store.Endpoint, final bool) ([]byte, error) {
	buf := make([]byte, 0, len(replyHeader)+(len(endpoints)+1)*addrEntrySize)
	buf = append(buf, replyHeader...)

	for _, ep := range endpoints {
		ip := net.ParseIP(ep.IP).To4()
		if ip == nil {
			return nil, fmt.Errorf("endpoint %s is not ipv4", ep)
		}
		buf = append(buf, ip...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(ep.Port))
	}

	if final {
		buf = append(buf, make([]byte, addrEntrySize)...)
	}
	return buf, nil
}

// DecodeBatch unpacks a reply datagram. It returns the decoded
// endpoints and whether the zero terminator was present.
func DecodeBatch(datagram []byte) ([]store.Endpoint, bool, error) {
	if len(datagram) < len(replyHeader) || !bytes.Equal(datagram[:len(replyHeader)], replyHeader) {
		return nil, false, ErrShortReply
	}
	body := datagram[len(replyHeader):]
	if len(body)%addrEntrySize != 0 {
		return nil, false, ErrShortReply
	}

	var out []store.Endpoint
	final := false
	for i := 0; i < len(body); i += addrEntrySize {
		entry := body[i : i+addrEntrySize]
		port := int(binary.BigEndian.Uint16(entry[4:]))
		ip := net.IPv4(entry[0], entry[1], entry[2], entry[3]).String()
		if ip == "0.0.0.0" && port == 0 {
			final = true
			break
		}
		out = append(out, store.Endpoint{IP: ip, Port: port})
	}
	return out, final, nil
}
