package models

import "github.com/Oussamaghaouti/irrig/internal/thingspeak"

// Pump and mode flag values as they appear on the channel.
const (
	PumpOff = "0"
	PumpOn  = "1"

	ModeAuto   = "0"
	ModeManual = "1"
)

// ChannelSnapshot is the latest fetched channel state. All fields are
// string-typed and optional, exactly as the channel stores them; a snapshot is
// immutable once built and replaced wholesale on every successful read.
type ChannelSnapshot struct {
	Temperature   string `json:"temperature,omitempty"`
	AirHumidity   string `json:"air_humidity,omitempty"`
	SoilHumidity  string `json:"soil_humidity,omitempty"`
	Precipitation string `json:"precipitation,omitempty"`
	Pump          string `json:"pump,omitempty"`     // "0" off | "1" on
	Pressure      string `json:"pressure,omitempty"`
	Mode          string `json:"mode,omitempty"`     // "0" auto | "1" manual
	CreatedAt     string `json:"created_at,omitempty"`
}

// SnapshotFromFeed maps a raw channel feed entry onto the snapshot.
func SnapshotFromFeed(f thingspeak.Feed) ChannelSnapshot {
	return ChannelSnapshot{
		Temperature:   f.Field1,
		AirHumidity:   f.Field2,
		SoilHumidity:  f.Field3,
		Precipitation: f.Field4,
		Pump:          f.Field5,
		Pressure:      f.Field6,
		Mode:          f.Field7,
		CreatedAt:     f.CreatedAt,
	}
}

// Field returns the snapshot value for a channel field wire name.
func (s ChannelSnapshot) Field(name string) string {
	switch name {
	case thingspeak.FieldTemperature:
		return s.Temperature
	case thingspeak.FieldAirHumidity:
		return s.AirHumidity
	case thingspeak.FieldSoilHumidity:
		return s.SoilHumidity
	case thingspeak.FieldPrecipitation:
		return s.Precipitation
	case thingspeak.FieldPump:
		return s.Pump
	case thingspeak.FieldPressure:
		return s.Pressure
	case thingspeak.FieldMode:
		return s.Mode
	}
	return ""
}
