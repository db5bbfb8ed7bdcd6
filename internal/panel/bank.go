package panel

import (
	"fmt"
	"sync"
	"time"
)

// ChangeNotification reports one topic whose value actually changed after
// its state was already established.
type ChangeNotification struct {
	Category  Category
	ID        int
	Topic     string
	Value     bool
	Timestamp time.Time
}

// topicState is the stored value and last-change time of one topic.
type topicState struct {
	value     TriState
	changedAt time.Time
}

// DeviceBank holds the last-known state of every device for one session.
//
// A bank is created fully populated (every id, every topic StateUnknown)
// when a session is established and discarded when the session ends. Only
// the processor worker mutates it; concurrent reads via Status are guarded
// by the internal mutex.
type DeviceBank struct {
	model *Model

	mu      sync.RWMutex
	devices map[Category][]map[string]*topicState // index = id-1
}

// NewDeviceBank creates a bank with every topic of every device unknown.
func NewDeviceBank(m *Model) *DeviceBank {
	devices := make(map[Category][]map[string]*topicState, len(m.Categories()))
	for _, cat := range m.Categories() {
		topics := m.Topics(cat)
		list := make([]map[string]*topicState, m.MaxID(cat))
		for i := range list {
			states := make(map[string]*topicState, len(topics))
			for _, topic := range topics {
				states[topic] = &topicState{value: StateUnknown}
			}
			list[i] = states
		}
		devices[cat] = list
	}
	return &DeviceBank{model: m, devices: devices}
}

// Apply diffs a decoded event against the stored state.
//
// Per topic, in the category's declared order:
//   - unchanged values are skipped;
//   - an Unknown value becoming concrete is stored silently (session
//     state-establishment, not a real transition);
//   - a concrete value changing is stored, stamped, and reported.
//
// An event whose id is outside [1, max] for its category is discarded
// without mutation; garbled lines can decode to arbitrary ids.
//
// Returns:
//   - []ChangeNotification: Real transitions, in topic order (may be empty)
func (b *DeviceBank) Apply(event StateEvent) []ChangeNotification {
	if !b.model.Valid(event.Category, event.ID) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var changes []ChangeNotification
	states := b.devices[event.Category][event.ID-1]
	for _, tv := range event.Topics {
		state, ok := states[tv.Topic]
		if !ok {
			continue
		}
		next := triStateOf(tv.Value)
		if state.value == next {
			continue
		}
		establishing := state.value == StateUnknown
		state.value = next
		state.changedAt = time.Now()
		if establishing {
			continue
		}
		changes = append(changes, ChangeNotification{
			Category:  event.Category,
			ID:        event.ID,
			Topic:     tv.Topic,
			Value:     tv.Value,
			Timestamp: state.changedAt,
		})
	}
	return changes
}

// Status returns the stored value and last-change time of one topic.
//
// Returns:
//   - TriState: Current value (StateUnknown until first observation)
//   - time.Time: Last change time (zero until the value first changes)
//   - error: ErrInvalidQuery for an unknown category, id, or topic
func (b *DeviceBank) Status(cat Category, id int, topic string) (TriState, time.Time, error) {
	if !b.model.Valid(cat, id) {
		return StateUnknown, time.Time{}, fmt.Errorf("%w: %s %d", ErrInvalidQuery, cat.Slug(), id)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	state, ok := b.devices[cat][id-1][topic]
	if !ok {
		return StateUnknown, time.Time{}, fmt.Errorf("%w: %s has no topic %q", ErrInvalidQuery, cat.Slug(), topic)
	}
	return state.value, state.changedAt, nil
}
