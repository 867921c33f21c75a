package models

import "strings"

// Airport is looked up by ICAO or IATA code when flights are entered.
type Airport struct {
	Meta

	ICAO      string  `json:"icao"`
	IATA      string  `json:"iata,omitempty"`
	Name      string  `json:"name,omitempty"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation int     `json:"elevation"` // feet
	Timezone  string  `json:"timezone,omitempty"`
}

func (a *Airport) EntityMeta() *Meta      { return &a.Meta }
func (a *Airport) Collection() Collection { return CollectionAirports }

func (a *Airport) Normalize() {
	a.ICAO = strings.ToUpper(strings.TrimSpace(a.ICAO))
	a.IATA = strings.ToUpper(strings.TrimSpace(a.IATA))
}
