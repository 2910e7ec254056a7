// Package discovery extracts candidate server endpoints from free text
// and from JSON bulk-add payloads. It never touches the store; callers
// decide what to do with duplicates.
package discovery

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Candidate is an endpoint proposed for registration, before any
// dedup against the store.
type Candidate struct {
	IP   string
	Port int
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s:%d", c.IP, c.Port)
}

var endpointPattern = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d{1,5})`)

// ExtractFromText scans free text for ip:port occurrences. Octets and
// the port range are validated; malformed matches are dropped. The
// result preserves first-occurrence order with duplicates removed.
func ExtractFromText(text string) []Candidate {
	matches := endpointPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var out []Candidate
	for _, m := range matches {
		ip, portStr := m[1], m[2]
		if net.ParseIP(ip) == nil {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		key := ip + ":" + portStr
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{IP: ip, Port: port})
	}
	return out
}

// ParseBulkJSON extracts endpoints from a bulk-add payload. The payload
// is either a bare array or an object with a "servers" array, each
// element carrying "ip" and "port" fields. Port may be a JSON number or
// a numeric string. Invalid elements are skipped and counted.
func ParseBulkJSON(payload []byte) (candidates []Candidate, skipped int, err error) {
	if !gjson.ValidBytes(payload) {
		return nil, 0, fmt.Errorf("invalid json payload")
	}

	doc := gjson.ParseBytes(payload)
	list := doc
	if doc.IsObject() {
		list = doc.Get("servers")
	}
	if !list.IsArray() {
		return nil, 0, fmt.Errorf("payload is not a server array")
	}

	seen := make(map[string]struct{})
	list.ForEach(func(_, item gjson.Result) bool {
		ip := strings.TrimSpace(item.Get("ip").String())
		port := int(item.Get("port").Int())
		if net.ParseIP(ip) == nil || port < 1 || port > 65535 {
			skipped++
			return true
		}
		key := fmt.Sprintf("%s:%d", ip, port)
		if _, dup := seen[key]; dup {
			skipped++
			return true
		}
		seen[key] = struct{}{}
		candidates = append(candidates, Candidate{IP: ip, Port: port})
		return true
	})
	return candidates, skipped, nil
}
