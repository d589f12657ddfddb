package attendance

import (
	"testing"
	"time"
)

const (
	sess1 = "7b0d5aef-7d9f-4d0a-9f44-2bd1e9a3cc0c"
	sess2 = "91c2f3a0-1162-4dbb-8c10-5d0f2f9a7b11"
)

func TestTokenRoundTrip(t *testing.T) {
	issued := time.Date(2021, time.March, 1, 14, 0, 0, 0, time.UTC)
	tok := NewToken(sess1, issued)

	parsed, err := ParseToken(tok.String())
	if err != nil {
		t.Fatalf("ParseToken(): %v", err)
	}
	if parsed != tok {
		t.Errorf("round trip = %+v, want %+v", parsed, tok)
	}
	if parsed.IssuedAt != issued.UnixNano()/int64(time.Millisecond) {
		t.Errorf("IssuedAt = %d, want %d", parsed.IssuedAt, issued.UnixNano()/int64(time.Millisecond))
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "valid", payload: sess1 + ":1614607200000"},
		{name: "empty", payload: "", wantErr: ErrMalformedToken},
		{name: "no separator", payload: sess1, wantErr: ErrMalformedToken},
		{name: "too many parts", payload: sess1 + ":123:456", wantErr: ErrMalformedToken},
		{name: "not a uuid", payload: "sess-1:1614607200000", wantErr: ErrMalformedToken},
		{name: "non-numeric timestamp", payload: sess1 + ":noonish", wantErr: ErrMalformedToken},
		{name: "negative timestamp", payload: sess1 + ":-5", wantErr: ErrMalformedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.payload)
			if err != tt.wantErr {
				t.Errorf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenAge(t *testing.T) {
	issued := time.Date(2021, time.March, 1, 14, 0, 0, 0, time.UTC)
	tok := NewToken(sess1, issued)

	if age := tok.Age(issued); age != 0 {
		t.Errorf("Age() at issue = %v, want 0", age)
	}
	if age := tok.Age(issued.Add(10 * time.Second)); age != 10*time.Second {
		t.Errorf("Age() = %v, want 10s", age)
	}
}
