// Package idgen mints ticket identifiers.
package idgen

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
)

// DefaultPrefix is the project key used for minted ticket ids.
const DefaultPrefix = "JIRA"

// Ticket numbers are always four digits.
const (
	minNumber = 1000
	maxNumber = 9999
	numSpan   = maxNumber - minNumber + 1
)

// Generator mints ticket ids of the form PREFIX-NNNN.
// Implementations must be safe for concurrent use.
type Generator interface {
	Prefix() string
	Next() string
}

// Format builds a ticket id from a prefix and number.
func Format(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", strings.ToUpper(prefix), n)
}

var ticketIDPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)-(\d+)$`)

// LooksLikeID reports whether s has the shape of a ticket id with the given
// prefix (case-insensitive), e.g. "jira-1234" for prefix "JIRA".
func LooksLikeID(prefix, s string) bool {
	m := ticketIDPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	return strings.EqualFold(m[1], prefix)
}

// HasIDShape reports whether s looks like a ticket id of any project,
// e.g. "OPS-17".
func HasIDShape(s string) bool {
	return ticketIDPattern.MatchString(strings.TrimSpace(s))
}

// IsMinted reports whether id is exactly the format Generator produces:
// an upper-case prefix, a dash and four digits.
func IsMinted(prefix, id string) bool {
	m := ticketIDPattern.FindStringSubmatch(id)
	return m != nil && m[1] == strings.ToUpper(prefix) && len(m[2]) == 4 && m[2][0] != '0'
}

// normalizePrefix upper-cases prefix, falling back to DefaultPrefix when blank.
func normalizePrefix(prefix string) string {
	if p := strings.TrimSpace(prefix); p != "" {
		return strings.ToUpper(p)
	}
	return DefaultPrefix
}

// Sequence hands out consecutive numbers starting at Start, wrapping back
// to 1000 after 9999. It is the deterministic generator used in tests.
type Sequence struct {
	prefix string
	mu     sync.Mutex
	next   int
}

// NewSequence returns a Sequence whose first id is PREFIX-start.
// A start outside 1000..9999 is clamped to 1000.
func NewSequence(prefix string, start int) *Sequence {
	if start < minNumber || start > maxNumber {
		start = minNumber
	}
	return &Sequence{prefix: normalizePrefix(prefix), next: start}
}

func (s *Sequence) Prefix() string { return s.prefix }

func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	if s.next > maxNumber {
		s.next = minNumber
	}
	return Format(s.prefix, n)
}

// Random draws numbers uniformly from 1000..9999. Seed it for reproducible
// output.
type Random struct {
	prefix string
	mu     sync.Mutex
	rng    *rand.Rand
}

// NewRandom returns a Random generator seeded with seed.
func NewRandom(prefix string, seed int64) *Random {
	return &Random{prefix: normalizePrefix(prefix), rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Prefix() string { return r.prefix }

func (r *Random) Next() string {
	r.mu.Lock()
	n := minNumber + r.rng.Intn(numSpan)
	r.mu.Unlock()
	return Format(r.prefix, n)
}

