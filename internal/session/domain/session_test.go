package domain

import "testing"

func TestStatus_Terminal(t *testing.T) {
	if StatusActive.Terminal() {
		t.Error("active must not be terminal")
	}
	for _, s := range []Status{StatusLoggedOut, StatusRevoked, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestParseDeviceType(t *testing.T) {
	tests := map[string]DeviceType{
		"phone":   DevicePhone,
		" Tablet": DeviceTablet,
		"WEB":     DeviceWeb,
		"watch":   DeviceUnknown,
		"":        DeviceUnknown,
	}
	for in, want := range tests {
		if got := ParseDeviceType(in); got != want {
			t.Errorf("ParseDeviceType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	tok := "tok"
	by := int64(3)
	s := &Session{PushToken: &tok, RevokedBy: &by, Metadata: map[string]string{"os": "android"}}
	c := s.Clone()
	*c.PushToken = "other"
	*c.RevokedBy = 4
	c.Metadata["os"] = "ios"
	if *s.PushToken != "tok" || *s.RevokedBy != 3 || s.Metadata["os"] != "android" {
		t.Error("clone shares state with original")
	}
}

func TestSession_BelongsTo(t *testing.T) {
	s := &Session{TenantID: 1, UserID: 2}
	if !s.BelongsTo(1, 2) {
		t.Error("BelongsTo(owner) should be true")
	}
	if s.BelongsTo(2, 2) || s.BelongsTo(1, 3) {
		t.Error("BelongsTo(other) should be false")
	}
	var nilSession *Session
	if nilSession.BelongsTo(1, 2) || nilSession.IsActive() {
		t.Error("nil session belongs to nobody and is inactive")
	}
}
