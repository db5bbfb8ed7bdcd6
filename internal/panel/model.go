package panel

import (
	"fmt"
	"sort"
)

// Category identifies a device class by its two-character wire prefix.
type Category string

// Device categories reported by the NX-587E.
const (
	// CategoryZone covers physical detection zones ("ZN" status lines).
	CategoryZone Category = "ZN"

	// CategoryPartition covers alarm partitions ("PA" status lines).
	CategoryPartition Category = "PA"
)

// Slug returns a lower-case name suitable for topics and log fields.
func (c Category) Slug() string {
	switch c {
	case CategoryZone:
		return "zone"
	case CategoryPartition:
		return "partition"
	default:
		return string(c)
	}
}

// TriState is the value of a device topic. Every topic starts as
// StateUnknown and becomes concrete on the first status line that covers it.
type TriState int8

// TriState values.
const (
	StateUnknown TriState = iota
	StateFalse
	StateTrue
)

// String returns "unknown", "false" or "true".
func (t TriState) String() string {
	switch t {
	case StateFalse:
		return "false"
	case StateTrue:
		return "true"
	default:
		return "unknown"
	}
}

// Bool returns the concrete value and whether the state is known.
func (t TriState) Bool() (value, known bool) {
	switch t {
	case StateTrue:
		return true, true
	case StateFalse:
		return false, true
	default:
		return false, false
	}
}

// triStateOf converts a wire boolean to a TriState.
func triStateOf(v bool) TriState {
	if v {
		return StateTrue
	}
	return StateFalse
}

// Topic order matters: the n-th payload character of a status line maps onto
// the n-th entry of the category's topic list.

// zoneTopics are the attributes encoded in a zone status line, e.g.
// "ZN002FttBaillb" (upper case character = true).
var zoneTopics = []string{
	"fault",
	"tamper",
	"trouble",
	"bypass",
	"alarmMemory",
	"inhibit",
	"lowBattery",
	"lost",
	"memoryBypass",
}

// partitionTopics are the attributes encoded in a partition status line,
// e.g. "PA1RasCeEps".
var partitionTopics = []string{
	"ready",
	"armed",
	"stay",
	"chime",
	"entryDelay",
	"exitPeriod",
	"previousAlarm",
	"siren",
}

// Default addressable device counts, matching the NX-587E query space
// (Q001-Q192 for zones, the following block for partitions).
const (
	DefaultMaxZones      = 192
	DefaultMaxPartitions = 8
)

// Model describes the device categories the panel reports: their topic lists
// and maximum addressable ids. A Model is immutable after construction.
type Model struct {
	topics     map[Category][]string
	maxID      map[Category]int
	categories []Category
}

// NewModel builds a Model for the given zone and partition limits.
//
// Returns:
//   - *Model: Validated model
//   - error: If a limit is not positive
func NewModel(maxZones, maxPartitions int) (*Model, error) {
	return newModel(map[Category][]string{
		CategoryZone:      zoneTopics,
		CategoryPartition: partitionTopics,
	}, map[Category]int{
		CategoryZone:      maxZones,
		CategoryPartition: maxPartitions,
	})
}

// DefaultModel returns the model for stock NX-587E firmware limits.
func DefaultModel() *Model {
	m, err := NewModel(DefaultMaxZones, DefaultMaxPartitions)
	if err != nil {
		panic(err) // static tables, cannot fail
	}
	return m
}

// newModel validates and assembles a model from raw tables.
//
// The id field of a status line is self-delimiting: the decoder consumes
// digits greedily after the category code and treats the rest as topic
// payload. That only works if no category code contains a digit, so this is
// asserted here rather than assumed.
func newModel(topics map[Category][]string, maxID map[Category]int) (*Model, error) {
	categories := make([]Category, 0, len(topics))
	for cat, list := range topics {
		if len(cat) != 2 || !isLetters(string(cat)) {
			return nil, fmt.Errorf("category %q: code must be two letters", cat)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("category %q: topic list is empty", cat)
		}
		limit, ok := maxID[cat]
		if !ok || limit <= 0 {
			return nil, fmt.Errorf("category %q: max id must be positive", cat)
		}
		categories = append(categories, cat)
	}
	// Stable iteration order for polls and tests.
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	return &Model{topics: topics, maxID: maxID, categories: categories}, nil
}

// isLetters reports whether s consists solely of ASCII letters.
func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return len(s) > 0
}

// Categories returns the known categories in stable order.
func (m *Model) Categories() []Category {
	return m.categories
}

// Topics returns the ordered topic list for a category, or nil if the
// category is unknown.
func (m *Model) Topics(c Category) []string {
	return m.topics[c]
}

// MaxID returns the highest addressable device id for a category, or 0 if
// the category is unknown.
func (m *Model) MaxID(c Category) int {
	return m.maxID[c]
}

// Valid reports whether (category, id) addresses a device in this model.
func (m *Model) Valid(c Category, id int) bool {
	limit, ok := m.maxID[c]
	return ok && id >= 1 && id <= limit
}

// deviceCount returns the total number of devices across all categories.
func (m *Model) deviceCount() int {
	total := 0
	for _, limit := range m.maxID {
		total += limit
	}
	return total
}
