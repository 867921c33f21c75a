package models

import "strings"

// CrewRole is the seat or duty a crew member held on a flight.
type CrewRole string

const (
	CrewRolePIC        CrewRole = "pic"
	CrewRoleSIC        CrewRole = "sic"
	CrewRoleInstructor CrewRole = "instructor"
	CrewRoleStudent    CrewRole = "student"
	CrewRoleCabin      CrewRole = "cabin"
)

// CrewMember references a Personnel record by its local id.
type CrewMember struct {
	PersonnelID string   `json:"personnelId"`
	Role        CrewRole `json:"role"`
}

// FlightLog is one logbook line. Durations are whole minutes; OOOI times are
// "HH:MM" UTC strings as entered or imported. Computed durations may be pinned
// by the pilot, in which case ManualOverrides[field] is true and calculators
// leave the value alone.
type FlightLog struct {
	Meta

	Date         string `json:"date"` // YYYY-MM-DD
	FlightNumber string `json:"flightNumber,omitempty"`
	AircraftID   string `json:"aircraftId,omitempty"`
	Registration string `json:"registration,omitempty"`
	AircraftType string `json:"aircraftType,omitempty"`

	From  string   `json:"from"`
	To    string   `json:"to"`
	Route []string `json:"route,omitempty"`

	Out string `json:"out,omitempty"`
	Off string `json:"off,omitempty"`
	On  string `json:"on,omitempty"`
	In  string `json:"in,omitempty"`

	BlockMinutes        int `json:"blockMinutes"`
	AirMinutes          int `json:"airMinutes"`
	NightMinutes        int `json:"nightMinutes"`
	IFRMinutes          int `json:"ifrMinutes"`
	PICMinutes          int `json:"picMinutes"`
	SICMinutes          int `json:"sicMinutes"`
	CrossCountryMinutes int `json:"crossCountryMinutes"`

	DayTakeoffs   int `json:"dayTakeoffs"`
	NightTakeoffs int `json:"nightTakeoffs"`
	DayLandings   int `json:"dayLandings"`
	NightLandings int `json:"nightLandings"`
	Approaches    int `json:"approaches"`

	Crew            []CrewMember    `json:"crew"`
	ManualOverrides map[string]bool `json:"manualOverrides"`
	Remarks         string          `json:"remarks,omitempty"`
}

func (f *FlightLog) EntityMeta() *Meta      { return &f.Meta }
func (f *FlightLog) Collection() Collection { return CollectionFlights }

func (f *FlightLog) Normalize() {
	f.Registration = strings.ToUpper(strings.TrimSpace(f.Registration))
	f.From = strings.ToUpper(strings.TrimSpace(f.From))
	f.To = strings.ToUpper(strings.TrimSpace(f.To))
	if f.Crew == nil {
		f.Crew = []CrewMember{}
	}
	if f.ManualOverrides == nil {
		f.ManualOverrides = map[string]bool{}
	}
}
