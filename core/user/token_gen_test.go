package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey := []byte("secret")
	timeout := 3 * 24 * time.Hour

	now := time.Now()
	idt := Identity{
		ID:        "11d8e29c-465c-4a7a-9673-85d6c52772cc",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleTeacher,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = idt.SetPassword("pwd")

	validToken, err := MakeToken(idt, secretKey)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(idt, secretKey)
	NowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	tests := []struct {
		name    string
		idt     Identity
		token   string
		wantErr error
	}{
		{name: "no token", idt: idt, wantErr: errInvalidToken},
		{name: "invalid parts len", idt: idt, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", idt: idt, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", idt: idt, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", idt: idt, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", idt: idt, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", idt: idt, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.idt, tt.token, secretKey, timeout); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
