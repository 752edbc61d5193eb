package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"maps"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testKeyID    = "test-key-1"
	testAudience = "https://outlook.office.com"
)

// TestClaims holds the configurable claims of a test access token.
type TestClaims struct {
	UPN      string
	TenantID string
	Scopes   string
	Extra    map[string]any
}

// tokenIssuer signs access tokens shaped like the ones Azure AD hands out
// for the Outlook REST service.
type tokenIssuer struct {
	privateKey *rsa.PrivateKey
	issuer     string
}

func newTokenIssuer(t *testing.T) *tokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return &tokenIssuer{
		privateKey: key,
		issuer:     "https://sts.windows.net/test-tenant/",
	}
}

// GenerateToken signs a token valid for one hour.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(claims, now, now.Add(time.Hour))
}

// GenerateExpiredToken signs a token that expired an hour ago.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(claims, now.Add(-2*time.Hour), now.Add(-time.Hour))
}

func (ti *tokenIssuer) sign(claims TestClaims, issued, expires time.Time) string {
	mapClaims := jwt.MapClaims{
		"iss": ti.issuer,
		"aud": testAudience,
		"iat": jwt.NewNumericDate(issued),
		"nbf": jwt.NewNumericDate(issued),
		"exp": jwt.NewNumericDate(expires),
		"upn": claims.UPN,
		"tid": claims.TenantID,
		"scp": claims.Scopes,
	}
	maps.Copy(mapClaims, claims.Extra)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, mapClaims)
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(ti.privateKey)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

// MailUserClaims returns claims for a user with mail and calendar scopes.
func MailUserClaims() TestClaims {
	return TestClaims{
		UPN:      "adele@contoso.example.com",
		TenantID: "contoso",
		Scopes:   "Mail.ReadWrite Mail.Send Calendars.ReadWrite Contacts.ReadWrite",
	}
}
