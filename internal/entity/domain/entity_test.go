package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"client", TypeClient, false},
		{" Order ", TypeOrder, false},
		{"ROUTE", TypeRoute, false},
		{"invoice", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownType) {
				t.Errorf("ParseType(%q): want ErrUnknownType, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseType(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestType_OwnerScoped(t *testing.T) {
	scoped := map[Type]bool{TypeOrder: true, TypeVisit: true, TypeRoute: true}
	for _, typ := range Types {
		if got := typ.OwnerScoped(); got != scoped[typ] {
			t.Errorf("%s.OwnerScoped() = %v, want %v", typ, got, scoped[typ])
		}
	}
}

func TestEntity_CloneIsDeep(t *testing.T) {
	owner := int64(5)
	e := &Entity{ID: 1, OwnerUserID: &owner, Payload: json.RawMessage(`{"a":1}`)}
	c := e.Clone()
	*c.OwnerUserID = 6
	c.Payload[2] = 'b'
	if *e.OwnerUserID != 5 {
		t.Error("clone shares owner pointer")
	}
	if string(e.Payload) != `{"a":1}` {
		t.Error("clone shares payload bytes")
	}
	if (*Entity)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

func TestEntity_OwnedBy(t *testing.T) {
	owner := int64(9)
	if !(&Entity{OwnerUserID: &owner}).OwnedBy(9) {
		t.Error("OwnedBy(owner) should be true")
	}
	if (&Entity{OwnerUserID: &owner}).OwnedBy(8) {
		t.Error("OwnedBy(other) should be false")
	}
	if (&Entity{}).OwnedBy(9) {
		t.Error("unowned entity is owned by nobody")
	}
}

func TestRejectError(t *testing.T) {
	err := Reject("total mismatch")
	var rej *RejectError
	if !errors.As(err, &rej) || rej.Reason != "total mismatch" {
		t.Fatalf("Reject: got %v", err)
	}
}
