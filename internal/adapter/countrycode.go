package adapter

import "sync"

// DefaultCountryCode is the placeholder code hardware ships with before a
// real regulatory region is known. It is never valid.
const DefaultCountryCode CountryCode = "00"

// CountryCode is an ISO 3166-1 alpha-2 regulatory region code.
type CountryCode string

// IsValid reports whether the code is a plausible ISO alpha-2 code. The
// "00" placeholder and anything that is not two ASCII letters is invalid.
func (c CountryCode) IsValid() bool {
	if len(c) != 2 || c == DefaultCountryCode {
		return false
	}
	for i := 0; i < len(c); i++ {
		ch := c[i]
		isUpper := ch >= 'A' && ch <= 'Z'
		isLower := ch >= 'a' && ch <= 'z'
		if !isUpper && !isLower {
			return false
		}
	}
	return true
}

// CountryCodeSource supplies the current regulatory country code and emits
// change events when it moves (telephony, geolocation, user override).
//
// Implementations must be safe for concurrent use.
type CountryCodeSource interface {
	// CountryCode returns the current code. May be the invalid default.
	CountryCode() CountryCode

	// SetOnChange registers the single change listener. The listener must
	// not block; the controller re-enqueues the work on its own queue.
	SetOnChange(fn func(code CountryCode))
}

// StaticCountryCodeSource is a CountryCodeSource backed by a settable
// value. The daemon uses it with the configured code; tests drive it
// directly via Update.
type StaticCountryCodeSource struct {
	mu       sync.Mutex
	code     CountryCode
	onChange func(code CountryCode)
}

// NewStaticCountryCodeSource creates a source seeded with the given code.
func NewStaticCountryCodeSource(code CountryCode) *StaticCountryCodeSource {
	return &StaticCountryCodeSource{code: code}
}

// CountryCode implements CountryCodeSource.
func (s *StaticCountryCodeSource) CountryCode() CountryCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// SetOnChange implements CountryCodeSource.
func (s *StaticCountryCodeSource) SetOnChange(fn func(code CountryCode)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Update replaces the code and fires the change listener if the code moved.
func (s *StaticCountryCodeSource) Update(code CountryCode) {
	s.mu.Lock()
	changed := s.code != code
	s.code = code
	fn := s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn(code)
	}
}
