package models

import "time"

// Storage is a registered storage array. Identity fields (serial number,
// model, firmware) come from the array itself at registration time, not from
// the caller.
//
// Credential fields are stored encrypted and never serialized to JSON.
type Storage struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Vendor       string `json:"vendor"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number,omitempty"`
	Firmware     string `json:"firmware,omitempty"`

	SSHHost     string `json:"ssh_host"`
	SSHPort     int    `json:"ssh_port,omitempty"`
	SSHUsername string `json:"ssh_username,omitempty"`
	SSHPassword string `json:"-"`

	RESTHost     string `json:"rest_host,omitempty"`
	RESTPort     int    `json:"rest_port,omitempty"`
	RESTUsername string `json:"rest_username,omitempty"`
	RESTPassword string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
