package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

/*
Service signs outbound RPC requests and verifies inbound bearer tokens.
It runs in one of two modes: a static shared token passed along verbatim,
or short-lived HS256 tokens minted per request from a shared secret.  The
static token wins when both are configured.
*/
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	static string
}

type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Static string
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" && cfg.Static == "" {
		return nil, fmt.Errorf("either a signing secret or a static token is required")
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "a2a-bridge"
	}

	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	return &Service{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		static: cfg.Static,
	}, nil
}

/*
Sign attaches a bearer token to an outbound request.  This satisfies the
RPC client's signer hook.
*/
func (service *Service) Sign(req *http.Request) error {
	token, err := service.token()

	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (service *Service) token() (string, error) {
	if service.static != "" {
		return service.static, nil
	}

	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": service.issuer,
		"iat": now.Unix(),
		"exp": now.Add(service.ttl).Unix(),
	})

	signed, err := token.SignedString(service.secret)

	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

/*
Verify checks an inbound bearer token against the service configuration.
*/
func (service *Service) Verify(token string) error {
	if token == "" {
		return fmt.Errorf("missing bearer token")
	}

	if service.static != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(service.static)) != 1 {
			return fmt.Errorf("invalid token")
		}

		return nil
	}

	parsed, err := jwt.Parse(
		token,
		service.signingKey,
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	if !parsed.Valid {
		return fmt.Errorf("token expired")
	}

	return nil
}

// VerifyRequest authenticates an HTTP request by its Authorization header.
func (service *Service) VerifyRequest(req *http.Request) error {
	return service.Verify(BearerToken(req.Header.Get("Authorization")))
}

func (service *Service) signingKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return service.secret, nil
}

/*
BearerToken strips the Bearer scheme from an Authorization header.  A
bare token without the scheme is accepted as-is.
*/
func BearerToken(header string) string {
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}

	return header
}
