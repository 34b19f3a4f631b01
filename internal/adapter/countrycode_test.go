package adapter

import "testing"

func TestCountryCode_IsValid(t *testing.T) {
	tests := []struct {
		code CountryCode
		want bool
	}{
		{code: "GB", want: true},
		{code: "us", want: true},
		{code: "Fr", want: true},
		{code: "00", want: false},
		{code: "0A", want: false},
		{code: "A1", want: false},
		{code: "GBR", want: false},
		{code: "G", want: false},
		{code: "", want: false},
		{code: "G!", want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.IsValid(); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestStaticCountryCodeSource(t *testing.T) {
	src := NewStaticCountryCodeSource("GB")
	if got := src.CountryCode(); got != "GB" {
		t.Errorf("CountryCode() = %q, want GB", got)
	}

	var fired []CountryCode
	src.SetOnChange(func(code CountryCode) { fired = append(fired, code) })

	// Same code does not fire.
	src.Update("GB")
	if len(fired) != 0 {
		t.Errorf("listener fired %d times on unchanged code, want 0", len(fired))
	}

	src.Update("FR")
	if len(fired) != 1 || fired[0] != "FR" {
		t.Errorf("fired = %v, want [FR]", fired)
	}
	if got := src.CountryCode(); got != "FR" {
		t.Errorf("CountryCode() = %q, want FR", got)
	}
}

func TestStaticCountryCodeSource_NoListener(t *testing.T) {
	src := NewStaticCountryCodeSource("GB")
	src.Update("FR") // must not panic without a listener
	if got := src.CountryCode(); got != "FR" {
		t.Errorf("CountryCode() = %q, want FR", got)
	}
}
