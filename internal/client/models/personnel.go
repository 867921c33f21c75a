package models

import "strings"

// Personnel is a crew member referenced from flights.
type Personnel struct {
	Meta

	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (p *Personnel) EntityMeta() *Meta      { return &p.Meta }
func (p *Personnel) Collection() Collection { return CollectionPersonnel }

func (p *Personnel) Normalize() {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}
