package session

import "github.com/feedad/kilusi-bill-sub007/internal/models"

// SameAccount reports whether two records name the same billable account.
// Account identity is inconsistently keyed across the sources that populate
// linked-account lists, so matching falls back through three tiers: PPPoE
// username when both sides carry one, then id equality, then service id
// against id.
func SameAccount(a, b models.CustomerRecord) bool {
	if a.PPPoEUsername != "" && b.PPPoEUsername != "" {
		return a.PPPoEUsername == b.PPPoEUsername
	}
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	if a.ServiceID != "" && a.ServiceID == b.ID {
		return true
	}
	if b.ServiceID != "" && b.ServiceID == a.ID {
		return true
	}
	return false
}

func containsAccount(accounts []models.CustomerRecord, target models.CustomerRecord) bool {
	for _, account := range accounts {
		if SameAccount(account, target) {
			return true
		}
	}
	return false
}
