// Package session mints and reads the signed-in user's session cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/gamefront/internal/cookie"
	"github.com/dgellow/gamefront/internal/crypto"
	"github.com/dgellow/gamefront/internal/handoff"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "gamefront"

// ErrTooLarge is returned by Issue when the sealed session would not fit in a cookie.
var ErrTooLarge = errors.New("session token exceeds cookie size limit")

// Session is the active signed-in identity
type Session struct {
	ID        string
	Identity  idp.Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Identity idp.Identity `json:"identity"`
}

// Issuer mints sessions as HS256 JWTs carried in an encrypted cookie.
// There is no server-side session record; signing out only clears the cookie.
type Issuer struct {
	signingKey []byte
	encryptor  crypto.Encryptor
	mailbox    handoff.Mailbox
	ttl        time.Duration
	now        func() time.Time
}

// NewIssuer creates a session issuer
func NewIssuer(signingKey []byte, encryptor crypto.Encryptor, mailbox handoff.Mailbox, ttl time.Duration) *Issuer {
	return &Issuer{
		signingKey: signingKey,
		encryptor:  encryptor,
		mailbox:    mailbox,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue mints a session for identity and sets the session cookie.
// The refresh token stays in the ledger and is never carried by the session.
func (i *Issuer) Issue(w http.ResponseWriter, identity idp.Identity) (*Session, error) {
	identity.RefreshToken = ""
	now := i.now().Truncate(time.Second)
	sess := &Session{
		ID:        uuid.NewString(),
		Identity:  identity,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    issuerName,
			Subject:   string(identity.Provider) + ":" + identity.ProviderID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Identity: identity,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}
	sealed, err := i.encryptor.Encrypt(signed)
	if err != nil {
		return nil, fmt.Errorf("encrypting session token: %w", err)
	}
	if !cookie.Fits(cookie.SessionCookie, sealed) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(cookie.SessionCookie)+len(sealed))
	}

	cookie.SetSession(w, sealed, i.ttl)
	return sess, nil
}

// CompleteFromTransient takes the identity waiting in the handoff mailbox for
// provider and turns it into a session. It returns false when there was nothing
// usable to complete.
func (i *Issuer) CompleteFromTransient(w http.ResponseWriter, r *http.Request, provider idp.ProviderType) (*Session, bool) {
	identity, ok := i.mailbox.Take(w, r, provider)
	if !ok {
		return nil, false
	}

	sess, err := i.Issue(w, *identity)
	if err != nil {
		log.LogErrorWithFields("session", "Failed to issue session", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, false
	}

	log.LogInfoWithFields("session", "Session issued", map[string]any{
		"provider":   provider,
		"providerId": identity.ProviderID,
		"expiresAt":  sess.ExpiresAt,
	})
	return sess, true
}

// Current returns the session carried by r. Absent, expired and tampered
// cookies all yield false.
func (i *Issuer) Current(r *http.Request) (*Session, bool) {
	sealed, err := cookie.GetSession(r)
	if err != nil {
		return nil, false
	}

	sess, err := i.parse(sealed)
	if err != nil {
		log.LogDebugWithFields("session", "Ignoring invalid session cookie", map[string]any{
			"error": err.Error(),
		})
		return nil, false
	}
	return sess, true
}

// SignOut clears the session cookie
func (i *Issuer) SignOut(w http.ResponseWriter) {
	cookie.ClearSession(w)
}

func (i *Issuer) parse(sealed string) (*Session, error) {
	signed, err := i.encryptor.Decrypt(sealed)
	if err != nil {
		return nil, err
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(signed, &claims,
		func(*jwt.Token) (any, error) { return i.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Identity.Provider == "" || claims.Identity.ProviderID == "" {
		return nil, errors.New("session token has no identity")
	}

	return &Session{
		ID:        claims.ID,
		Identity:  claims.Identity,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
