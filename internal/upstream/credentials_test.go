package upstream

import (
	"net/http"
	"testing"
)

const placeholder = "your-api-key-here"

func headerWithBearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func TestCredentialSelector_SessionTokenWinsOverClientBearer(t *testing.T) {
	s := DefaultCredentialSelector("static-key", placeholder)

	cred := s.Select(CredentialInput{
		SessionToken: "session-token",
		Header:       headerWithBearer("client-token"),
	})

	if cred.Kind != CredentialSessionToken {
		t.Fatalf("Kind = %q, want %q", cred.Kind, CredentialSessionToken)
	}
	if cred.Header() != "Bearer session-token" {
		t.Errorf("Header() = %q, want %q", cred.Header(), "Bearer session-token")
	}
}

func TestCredentialSelector_ClientBearerForwardedVerbatim(t *testing.T) {
	s := DefaultCredentialSelector("static-key", placeholder)

	cred := s.Select(CredentialInput{Header: headerWithBearer("eyJhbGciOi.client.token")})

	if cred.Kind != CredentialClientBearer {
		t.Fatalf("Kind = %q, want %q", cred.Kind, CredentialClientBearer)
	}
	if cred.Header() != "Bearer eyJhbGciOi.client.token" {
		t.Errorf("Header() = %q", cred.Header())
	}
}

func TestCredentialSelector_StaticAPIKeyLastResort(t *testing.T) {
	s := DefaultCredentialSelector("static-key", placeholder)

	cred := s.Select(CredentialInput{Header: http.Header{}})

	if cred.Kind != CredentialStaticAPIKey {
		t.Fatalf("Kind = %q, want %q", cred.Kind, CredentialStaticAPIKey)
	}
	if cred.Header() != "Bearer static-key" {
		t.Errorf("Header() = %q", cred.Header())
	}
}

func TestCredentialSelector_PlaceholderKeyIsIgnored(t *testing.T) {
	s := DefaultCredentialSelector(placeholder, placeholder)

	cred := s.Select(CredentialInput{})

	if cred.Kind != CredentialNone {
		t.Fatalf("Kind = %q, want %q", cred.Kind, CredentialNone)
	}
	if cred.Header() != "" {
		t.Errorf("Header() = %q, want empty", cred.Header())
	}
}

func TestCredentialSelector_NonBearerAuthorizationIgnored(t *testing.T) {
	s := DefaultCredentialSelector("", placeholder)
	h := http.Header{}
	h.Set("Authorization", "Basic dXNlcjpwYXNz")

	cred := s.Select(CredentialInput{Header: h})

	if cred.Kind != CredentialNone {
		t.Errorf("Kind = %q, want %q", cred.Kind, CredentialNone)
	}
}

func TestCredentialSources_Independent(t *testing.T) {
	if _, ok := (SessionTokenSource{}).Credential(CredentialInput{}); ok {
		t.Error("SessionTokenSource should not match without a session token")
	}
	if _, ok := (ClientBearerSource{}).Credential(CredentialInput{Header: headerWithBearer("")}); ok {
		t.Error("ClientBearerSource should not match an empty bearer token")
	}
	if _, ok := (StaticAPIKeySource{APIKey: "", Placeholder: placeholder}).Credential(CredentialInput{}); ok {
		t.Error("StaticAPIKeySource should not match an empty key")
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "bearer abc123")

	if got := BearerToken(h); got != "abc123" {
		t.Errorf("BearerToken = %q, want %q", got, "abc123")
	}
	if got := BearerToken(nil); got != "" {
		t.Errorf("BearerToken(nil) = %q, want empty", got)
	}
}
