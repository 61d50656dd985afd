package session

import (
	"testing"

	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

func TestSameAccount(t *testing.T) {
	cases := []struct {
		name string
		a    models.CustomerRecord
		b    models.CustomerRecord
		same bool
	}{
		{"pppoe match", models.CustomerRecord{PPPoEUsername: "budi@isp", ID: "1"}, models.CustomerRecord{PPPoEUsername: "budi@isp", ID: "2"}, true},
		{"pppoe mismatch wins over id", models.CustomerRecord{PPPoEUsername: "budi@isp", ID: "1"}, models.CustomerRecord{PPPoEUsername: "siti@isp", ID: "1"}, false},
		{"id match", models.CustomerRecord{ID: "42"}, models.CustomerRecord{ID: "42"}, true},
		{"id mismatch", models.CustomerRecord{ID: "42"}, models.CustomerRecord{ID: "99"}, false},
		{"one-sided pppoe falls through to id", models.CustomerRecord{PPPoEUsername: "budi@isp", ID: "42"}, models.CustomerRecord{ID: "42"}, true},
		{"service id against id", models.CustomerRecord{ServiceID: "svc-7"}, models.CustomerRecord{ID: "svc-7"}, true},
		{"service id against id reversed", models.CustomerRecord{ID: "svc-7"}, models.CustomerRecord{ServiceID: "svc-7"}, true},
		{"nothing to match", models.CustomerRecord{}, models.CustomerRecord{}, false},
		{"empty ids never match", models.CustomerRecord{Name: "a"}, models.CustomerRecord{Name: "a"}, false},
	}

	for _, tt := range cases {
		if got := SameAccount(tt.a, tt.b); got != tt.same {
			t.Fatalf("%s: SameAccount=%v, want %v", tt.name, got, tt.same)
		}
	}
}

func TestContainsAccount(t *testing.T) {
	accounts := []models.CustomerRecord{
		{ID: "42", PPPoEUsername: "budi@isp"},
		{ID: "99"},
	}
	if !containsAccount(accounts, models.CustomerRecord{ID: "99"}) {
		t.Fatal("expected match by id")
	}
	if !containsAccount(accounts, models.CustomerRecord{PPPoEUsername: "budi@isp", ID: "7"}) {
		t.Fatal("expected match by pppoe username")
	}
	if containsAccount(accounts, models.CustomerRecord{ID: "7"}) {
		t.Fatal("unexpected match")
	}
}
