package routeros

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mitchellh/mapstructure"

	"github.com/imamik/routeros-upgrade/internal/util/ptr"
)

// attributeLine matches "<spaces><key>: <value>". The key may not contain a colon.
var attributeLine = regexp.MustCompile(`^\s*([^:]*): (.*)$`)

// NormalizeKey maps the wire key separator '-' to '_'. It is idempotent.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// AttributeSet is the fixed set of normalized keys a command's caller reads.
type AttributeSet map[string]struct{}

// NewAttributeSet builds an AttributeSet, normalizing every name.
func NewAttributeSet(names ...string) AttributeSet {
	set := make(AttributeSet, len(names))
	for _, n := range names {
		set[NormalizeKey(n)] = struct{}{}
	}
	return set
}

// Has reports whether key (already normalized) is requested.
func (s AttributeSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Record maps requested attribute names to the last value seen for each.
// A missing key means the device never printed it, which is distinct from
// an empty value.
type Record map[string]string

// Get returns the value for key and whether it was present.
func (r Record) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

// Parse reads line-oriented console output and keeps the requested attributes.
//
// Raw lines are logged at V(3) and accepted pairs at V(2).
func Parse(r io.Reader, attrs AttributeSet, log logr.Logger) (Record, error) {
	rec := make(Record, len(attrs))

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		log.V(3).Info("output", "line", line)

		m := attributeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := NormalizeKey(m[1])
		if !attrs.Has(key) {
			continue
		}
		rec[key] = m[2]
		log.V(2).Info("attribute", "key", key, "value", m[2])
	}
	if err := scanner.Err(); err != nil {
		return rec, fmt.Errorf("failed to read command output: %w", err)
	}

	return rec, nil
}

// ParseString is Parse over an in-memory command output.
func ParseString(output string, attrs AttributeSet, log logr.Logger) (Record, error) {
	return Parse(strings.NewReader(output), attrs, log)
}

// Decode copies a Record into a typed result. Fields are *string tagged with
// `mapstructure:"<attribute>"`; attributes absent from the record stay nil.
func Decode[T any](rec Record) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "mapstructure",
	})
	if err != nil {
		return out, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]string(rec)); err != nil {
		return out, fmt.Errorf("failed to decode record: %w", err)
	}
	return out, nil
}

// Value dereferences an optional attribute, returning "" when unset.
func Value(p *string) string {
	return ptr.Deref(p)
}

// Present reports whether an optional attribute is set and non-empty.
func Present(p *string) bool {
	return p != nil && *p != ""
}
