package config

import "testing"

func TestRetailerByID(t *testing.T) {
	r, ok := RetailerByID("souqdirect-sa")
	if !ok {
		t.Fatal("souqdirect-sa not found")
	}
	if r.Currency != "SAR" || r.Country != "SA" {
		t.Errorf("souqdirect-sa = %s/%s; want SAR/SA", r.Currency, r.Country)
	}

	if _, ok := RetailerByID("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestRetailerByDomain(t *testing.T) {
	tests := []struct {
		host   string
		wantID string
		wantOK bool
	}{
		{"souqdirect-sa.example.com", "souqdirect-sa", true},
		{"www.souqdirect-sa.example.com", "souqdirect-sa", true},
		{"WWW.Warenhaus-DE.example.com", "warenhaus-de", true},
		{"warenhaus-de.example.com", "warenhaus-de", true},
		{"evil.internal", "", false},
		{"souqdirect-sa.example.com.evil.internal", "", false},
	}

	for _, tt := range tests {
		r, ok := RetailerByDomain(tt.host)
		if ok != tt.wantOK || (ok && r.ID != tt.wantID) {
			t.Errorf("RetailerByDomain(%q) = (%q, %v); want (%q, %v)", tt.host, r.ID, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestActiveRetailers(t *testing.T) {
	all := ActiveRetailers("")
	for _, r := range all {
		if !r.Active {
			t.Errorf("inactive retailer %s in active set", r.ID)
		}
		if r.ID == "souqdirect-eg" {
			t.Error("souqdirect-eg is inactive and must be excluded")
		}
	}

	sa := ActiveRetailers("sa")
	if len(sa) != 1 || sa[0].ID != "souqdirect-sa" {
		t.Errorf("ActiveRetailers(sa) = %+v; want just souqdirect-sa", sa)
	}

	if got := ActiveRetailers("ZZ"); len(got) != 0 {
		t.Errorf("ActiveRetailers(ZZ) = %+v; want empty", got)
	}
}
