package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const issuer = "adcp-sales-agent"

// Claims identify the caller: the tenant it acts in, the principal it acts as
// and its role.
type Claims struct {
	TenantID    string `json:"tenant_id"`
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token that expires after expiration (24h when <= 0).
func GenerateJWT(secret, tenantID, principalID, role string, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		TenantID:    tenantID,
		PrincipalID: principalID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, eris.Wrap(err, "sign jwt")
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, eris.Wrap(err, "parse jwt")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, eris.New("invalid token")
	}
	if claims.TenantID == "" || claims.PrincipalID == "" {
		return nil, eris.New("token is missing tenant or principal")
	}
	return claims, nil
}
