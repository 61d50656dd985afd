package models

import (
	"bytes"
	"encoding/json"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// FlexString decodes JSON strings, numbers, and null into a plain string.
// Upstream services are inconsistent about whether customer IDs and prices
// are serialized as strings or numbers, so normalization happens here once.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// CustomerRecord is a snapshot of one billable service account.
type CustomerRecord struct {
	ID             FlexString       `json:"id"`
	CustomerCode   string           `json:"customer_code,omitempty"`
	ServiceID      FlexString       `json:"service_id,omitempty"`
	Name           string           `json:"name"`
	Phone          string           `json:"phone"`
	Email          string           `json:"email,omitempty"`
	Address        string           `json:"address,omitempty"`
	PackageName    string           `json:"package_name,omitempty"`
	PackagePrice   FlexString       `json:"package_price,omitempty"`
	PPPoEUsername  string           `json:"pppoe_username,omitempty"`
	Status         string           `json:"status,omitempty"`
	LinkedAccounts []CustomerRecord `json:"linked_accounts,omitempty"`
}

// Session is the authentication context for one device. A session is
// considered present only when both the token and the active customer are
// present; a partial record means not authenticated.
type Session struct {
	Token          string           `json:"token"`
	ActiveCustomer CustomerRecord   `json:"active_customer"`
	LinkedAccounts []CustomerRecord `json:"linked_accounts,omitempty"`
}
