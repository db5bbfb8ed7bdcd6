package panel

import "fmt"

// Keymap maps logical command names to the single keypad control character
// the NX-587E expects. The mapping differs between firmware regions, so the
// variant is fixed at construction time.
type Keymap map[string]string

// Keymap variant selectors.
const (
	KeymapUSA  = "USA"
	KeymapAUNZ = "AUNZ"
)

// SetupCommand is the logical command name that sends the module its
// reporting configuration string instead of a keypad character.
const SetupCommand = "nx587_setup"

// DefaultSetupOptions is the reporting configuration written to the module
// at session start. The NX-587E loses this configuration when the panel
// powers down, so the supervisor also re-sends it periodically while the
// port is unavailable.
const DefaultSetupOptions = "ZPne"

// keymapUSA is the module's default mapping.
var keymapUSA = Keymap{
	"stay":    "S",
	"chime":   "C",
	"exit":    "E",
	"bypass":  "B",
	"cancel":  "K",
	"fire":    "F",
	"medical": "M",
	"hold_up": "H",
}

// keymapAUNZ is the mapping for Australian / New Zealand firmware, where
// "K" performs a partial arm and "S" a quick arm.
var keymapAUNZ = Keymap{
	"partial": "K",
	"chime":   "C",
	"exit":    "E",
	"bypass":  "B",
	"on":      "S",
	"fire":    "F",
	"medical": "M",
	"hold_up": "H",
}

// KeymapFor returns the keymap for a variant selector.
//
// Returns:
//   - Keymap: The selected mapping
//   - error: ErrUnsupportedKeymap if the variant is not USA or AUNZ
func KeymapFor(variant string) (Keymap, error) {
	switch variant {
	case KeymapUSA:
		return keymapUSA, nil
	case KeymapAUNZ:
		return keymapAUNZ, nil
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnsupportedKeymap, variant, KeymapUSA, KeymapAUNZ)
	}
}
