package panel

import (
	"fmt"
)

// StateEvent is one decoded status line: the full set of topic values the
// panel reported for a single device, in the category's declared order.
type StateEvent struct {
	Category Category
	ID       int
	Topics   []TopicValue
}

// TopicValue is a single (topic, value) pair within a StateEvent.
type TopicValue struct {
	Topic string
	Value bool
}

// Codec translates between raw ASCII lines and typed events/commands for a
// given device model. A Codec is stateless and safe for concurrent use.
type Codec struct {
	model *Model
}

// NewCodec creates a codec bound to a device model.
func NewCodec(m *Model) *Codec {
	return &Codec{model: m}
}

// DecodeEvent parses a status line into a StateEvent.
//
// The line layout is `<2-char category code><id digits><topic payload>`.
// The id is read by consuming decimal digits greedily after the category
// code; the remaining characters map positionally onto the category's topic
// list, upper case meaning true. A payload shorter than the topic list
// populates only the covered topics. Range checking of the id is the device
// bank's job, not the codec's.
//
// Returns:
//   - StateEvent: The decoded event
//   - bool: false if the line is too short, has an unknown category prefix,
//     or carries no id digits; such lines are noise and are dropped silently
func (c *Codec) DecodeEvent(line string) (StateEvent, bool) {
	if len(line) < 3 {
		return StateEvent{}, false
	}

	cat := Category(line[:2])
	topics := c.model.Topics(cat)
	if topics == nil {
		return StateEvent{}, false
	}

	// Greedy digit scan; self-delimiting because topic payload characters
	// are letters (asserted by newModel).
	pos := 2
	id := 0
	for pos < len(line) && line[pos] >= '0' && line[pos] <= '9' {
		id = id*10 + int(line[pos]-'0')
		pos++
	}
	if pos == 2 {
		return StateEvent{}, false
	}

	payload := line[pos:]
	n := len(payload)
	if n > len(topics) {
		n = len(topics)
	}
	values := make([]TopicValue, 0, n)
	for i := 0; i < n; i++ {
		ch := payload[i]
		values = append(values, TopicValue{
			Topic: topics[i],
			Value: ch >= 'A' && ch <= 'Z',
		})
	}

	return StateEvent{Category: cat, ID: id, Topics: values}, true
}

// EncodeDirectQuery builds the command that asks the panel to re-announce
// one device's full state.
//
// The module multiplexes zones and partitions into a single numeric query
// space: zone n is queried as "Q" + n zero-padded to three digits, and
// partition n as "Q" + (maxZones + n). With stock limits that yields
// Q001-Q192 for zones and Q193 onwards for partitions.
//
// Returns:
//   - string: The query command
//   - error: ErrInvalidQuery if the category or id is out of range
func (c *Codec) EncodeDirectQuery(cat Category, id int) (string, error) {
	if !c.model.Valid(cat, id) {
		return "", fmt.Errorf("%w: %s %d", ErrInvalidQuery, cat.Slug(), id)
	}

	number := id
	if cat == CategoryPartition {
		number += c.model.MaxID(CategoryZone)
	}
	return fmt.Sprintf("Q%03d", number), nil
}

// EncodeCommand resolves a logical command name to the string written to
// the module.
//
// Resolution order:
//  1. A 4- or 6-digit numeric string is a user code, passed through verbatim.
//  2. SetupCommand maps to the configured setup-options string.
//  3. Anything else is looked up in the keymap.
//
// Returns:
//   - string: The wire command
//   - error: ErrUnknownCommand if the name resolves to nothing
func EncodeCommand(keymap Keymap, setupOptions, name string) (string, error) {
	if isUserCode(name) {
		return name, nil
	}
	if name == SetupCommand {
		return setupOptions, nil
	}
	if key, ok := keymap[name]; ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// isUserCode reports whether s is a 4- or 6-digit numeric user code.
func isUserCode(s string) bool {
	if len(s) != 4 && len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
