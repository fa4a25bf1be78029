// Package templates maps device event types to the fixed notification
// templates used for alert emails.
package templates

// Priority drives the header colour of the rendered email.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Color returns the header colour for the priority.
func (p Priority) Color() string {
	switch p {
	case PriorityHigh:
		return "#dc2626"
	case PriorityLow:
		return "#2563eb"
	default:
		return "#f59e0b"
	}
}

type Template struct {
	Subject  string
	Intro    string
	Icon     string
	Priority Priority
	// Detail builds the detail line. location may be empty.
	Detail func(location string) string
}

// Event type tags with a dedicated template.
const (
	TypeMotion        = "motion_detected"
	TypePerson        = "person_detected"
	TypeDoorbell      = "doorbell_ring"
	TypePackage       = "package_detected"
	TypeDoorOpened    = "door_opened"
	TypeSound         = "sound_detected"
	TypeDeviceOffline = "device_offline"
	TypeLowBattery    = "low_battery"
)

func at(prefix string) func(string) string {
	return func(location string) string {
		if location == "" {
			return prefix + "."
		}
		return prefix + " at " + location + "."
	}
}

var registry = map[string]Template{
	TypeMotion: {
		Subject:  "Motion Detected",
		Intro:    "One of your devices picked up movement.",
		Icon:     "🚶",
		Priority: PriorityMedium,
		Detail:   at("Motion was detected"),
	},
	TypePerson: {
		Subject:  "Person Detected",
		Intro:    "Someone was spotted by one of your cameras.",
		Icon:     "👤",
		Priority: PriorityHigh,
		Detail:   at("A person was detected"),
	},
	TypeDoorbell: {
		Subject:  "Doorbell Rang",
		Intro:    "Someone is at your door.",
		Icon:     "🔔",
		Priority: PriorityHigh,
		Detail:   at("Your doorbell was pressed"),
	},
	TypePackage: {
		Subject:  "Package Detected",
		Intro:    "A delivery may have arrived.",
		Icon:     "📦",
		Priority: PriorityMedium,
		Detail:   at("A package was detected"),
	},
	TypeDoorOpened: {
		Subject:  "Door Opened",
		Intro:    "A monitored door was opened.",
		Icon:     "🚪",
		Priority: PriorityHigh,
		Detail:   at("A door was opened"),
	},
	TypeSound: {
		Subject:  "Sound Detected",
		Intro:    "One of your devices heard something.",
		Icon:     "🔊",
		Priority: PriorityMedium,
		Detail:   at("Unusual sound was detected"),
	},
	TypeDeviceOffline: {
		Subject:  "Device Offline",
		Intro:    "One of your devices stopped reporting.",
		Icon:     "⚠️",
		Priority: PriorityHigh,
		Detail:   at("The device went offline"),
	},
	TypeLowBattery: {
		Subject:  "Low Battery",
		Intro:    "A device is running low on battery.",
		Icon:     "🔋",
		Priority: PriorityLow,
		Detail:   at("The battery is running low on the device"),
	},
}

var defaultTemplate = Template{
	Subject:  "Device Alert",
	Intro:    "There is new activity on one of your devices.",
	Icon:     "🏠",
	Priority: PriorityMedium,
	Detail:   at("New activity was reported"),
}

// Resolve returns the template for eventType, or the default template when
// the type has no exact match.
func Resolve(eventType string) Template {
	if t, ok := registry[eventType]; ok {
		return t
	}
	return defaultTemplate
}

// Default returns the fallback template.
func Default() Template {
	return defaultTemplate
}
