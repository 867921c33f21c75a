package models

import "strings"

// Aircraft is an airframe the pilot has flown, keyed naturally by registration.
type Aircraft struct {
	Meta

	Registration string `json:"registration"`
	TypeCode     string `json:"typeCode,omitempty"` // ICAO type designator, e.g. C172
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Category     string `json:"category,omitempty"` // airplane, rotorcraft, glider...
	Class        string `json:"class,omitempty"`    // SEL, MEL, SES...
	Complex      bool   `json:"complex"`
	HighPerf     bool   `json:"highPerformance"`
	Tailwheel    bool   `json:"tailwheel"`
	Simulator    bool   `json:"simulator"`
	Notes        string `json:"notes,omitempty"`
}

func (a *Aircraft) EntityMeta() *Meta      { return &a.Meta }
func (a *Aircraft) Collection() Collection { return CollectionAircraft }

func (a *Aircraft) Normalize() {
	a.Registration = strings.ToUpper(strings.TrimSpace(a.Registration))
	a.TypeCode = strings.ToUpper(strings.TrimSpace(a.TypeCode))
}
