// internal/status/constants.go
package status

// Diagnostics block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per display.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the display health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the kind of the last absorbed error.
const SlotLastErrorCode = 1

// SlotBusFaults holds the number of bus recoveries (saturating).
const SlotBusFaults = 2

// SlotUnitsConfigured holds the configured unit count.
const SlotUnitsConfigured = 3

// SlotUnitsResponding holds the number of units that answered the last poll.
const SlotUnitsResponding = 4

// SlotShortReads holds the number of short reads in the last poll.
const SlotShortReads = 5

// SlotLiveCount is the number of live slots written incrementally.
const SlotLiveCount = 6

// ---- RESERVED RANGE ----

// Slots 6–10 are reserved for future use.
const SlotReservedStart = 6
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the display name.
// The name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the display name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the display name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for the name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before the first poll.
const HealthUnknown uint16 = 0

// HealthOK means every configured unit answered the last poll.
const HealthOK uint16 = 1

// HealthError means no configured unit answered the last poll.
const HealthError uint16 = 2

// HealthStale means some units kept their last-known state.
const HealthStale uint16 = 3

// HealthDisabled means no units are configured.
const HealthDisabled uint16 = 4

// ---- ERROR CODES ----

// ErrorNone: nothing absorbed since the last healthy poll.
const ErrorNone uint16 = 0

// ErrorShortRead: a unit answered with an incomplete frame.
const ErrorShortRead uint16 = 1

// ErrorBusFault: a stuck data line was detected and recovered.
const ErrorBusFault uint16 = 2

// ErrorCommitFailed: a command could not be delivered.
const ErrorCommitFailed uint16 = 3
