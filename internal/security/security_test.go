package security

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("info839")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "info839" {
		t.Fatal("HashPassword() returned the plain password")
	}
	if !CheckPassword(hash, "info839") {
		t.Error("CheckPassword() = false for the right password, want true")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword() = true for a wrong password, want false")
	}
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, sessionID, expires, err := m.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !expires.After(time.Now()) {
		t.Errorf("Issue() expires = %v, want future", expires)
	}

	got, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != sessionID {
		t.Errorf("Verify() = %q, want %q", got, sessionID)
	}

	t.Run("other secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour)
		if _, err := other.Verify(token); err == nil {
			t.Error("Verify() with another secret error = nil, want error")
		}
	})

	t.Run("expired", func(t *testing.T) {
		late := NewTokenManager("test-secret", time.Hour)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := late.Verify(token); err == nil {
			t.Error("Verify() of expired token error = nil, want error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.Verify("not-a-token"); err == nil {
			t.Error("Verify() of garbage error = nil, want error")
		}
	})
}

func TestCSRFGenerator(t *testing.T) {
	g := NewCSRFGenerator("secret")

	token, err := g.GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !g.ValidateToken("session-1", token) {
		t.Error("ValidateToken() = false for matching session, want true")
	}
	if g.ValidateToken("session-2", token) {
		t.Error("ValidateToken() = true for another session, want false")
	}
	if g.ValidateToken("session-1", "") {
		t.Error("ValidateToken() = true for empty token, want false")
	}
	if _, err := g.GenerateToken(""); err == nil {
		t.Error("GenerateToken(\"\") error = nil, want error")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("Allow() = false within rate, want true")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("Allow() = true over rate, want false")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("Allow() = false for another client, want true")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("Allow() = false after window, want true")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", forwarded: "10.0.0.1, 10.0.0.2", remoteAddr: "127.0.0.1:5000", want: "10.0.0.1"},
		{name: "real ip", realIP: "10.0.0.9", remoteAddr: "127.0.0.1:5000", want: "10.0.0.9"},
		{name: "remote addr", remoteAddr: "192.168.1.4:5000", want: "192.168.1.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionCookies(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")

	c := CreateSessionCookie(r, "tok", time.Now().Add(time.Hour))
	if c.Name != SessionCookieName || !c.HttpOnly || !c.Secure {
		t.Errorf("CreateSessionCookie() = %+v, want HttpOnly Secure %s", c, SessionCookieName)
	}
	d := CreateDeleteCookie(httptest.NewRequest("GET", "/", nil))
	if d.MaxAge != -1 || d.Secure {
		t.Errorf("CreateDeleteCookie() = %+v, want MaxAge -1 and not Secure", d)
	}
}
