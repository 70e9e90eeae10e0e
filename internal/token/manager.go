package token

import (
	"context"
	"sync"
	"time"

	"fabricmcp/internal/mcperr"
	"fabricmcp/pkg/logging"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryMargin is the remaining validity below which a credential is
// refreshed before use. It absorbs clock skew and the latency of the
// upstream call the credential is about to authenticate.
const DefaultExpiryMargin = 5 * time.Minute

// refreshKey is the singleflight key: the manager owns a single credential
// slot, so all concurrent refreshes collapse into one upstream call.
const refreshKey = "refresh"

// Credential is a bearer token plus its expiry instant. It is handed out for
// the duration of one outbound call and must not be retained past it.
type Credential struct {
	Token     Redacted
	ExpiresAt time.Time
}

// Valid reports whether the credential has at least margin of validity left.
// A zero expiry means the expiry could not be determined; such credentials
// are used as-is and rejected by the upstream if actually stale.
func (c Credential) Valid(margin time.Duration) bool {
	if c.Token.IsEmpty() {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(margin).Before(c.ExpiresAt)
}

// CredentialClient exchanges a refresh token for a fresh credential at the
// credential-manager service. Implementations must apply their own call
// timeout and map failures onto the mcperr taxonomy.
type CredentialClient interface {
	RefreshCredential(ctx context.Context, refreshToken string) (cred Credential, newRefreshToken string, err error)
}

// Manager owns the current-credential slot and the refresh decision for
// every outbound call. It is the only place the process holds a token:
// nothing is persisted, and log output only ever sees redacted markers.
type Manager struct {
	client CredentialClient
	margin time.Duration

	mu           sync.RWMutex
	current      Credential
	refreshToken string

	group singleflight.Group
}

// NewManager creates a manager around the given credential client. A zero
// margin selects DefaultExpiryMargin.
func NewManager(client CredentialClient, margin time.Duration) *Manager {
	if margin <= 0 {
		margin = DefaultExpiryMargin
	}
	return &Manager{client: client, margin: margin}
}

// Observe records a bearer token seen on an inbound request as the current
// credential. The expiry is taken from the token's unverified exp claim;
// claims are never trusted for authorization, only for scheduling refresh
// and for display context.
func (m *Manager) Observe(bearer string) {
	if bearer == "" {
		return
	}
	cred := Credential{Token: NewRedacted(bearer), ExpiresAt: expiryOf(bearer)}

	m.mu.Lock()
	m.current = cred
	m.mu.Unlock()
	logging.Debug("Token", "observed credential (expires %s)", describeExpiry(cred.ExpiresAt))
}

// SetRefreshToken installs the refresh credential used when the current
// token runs out of validity.
func (m *Manager) SetRefreshToken(rt string) {
	m.mu.Lock()
	m.refreshToken = rt
	m.mu.Unlock()
}

// EnsureValid returns a credential with at least the safety margin of
// validity remaining. If the current credential is inside the margin and
// allowRefresh is set, one refresh call is made; concurrent callers
// observing the same near-expiry credential share that single call. With no
// usable credential and no refresh possible, it fails with unauthorized.
func (m *Manager) EnsureValid(ctx context.Context, allowRefresh bool) (Credential, error) {
	m.mu.RLock()
	cred := m.current
	hasRefresh := m.refreshToken != ""
	m.mu.RUnlock()

	if cred.Valid(m.margin) {
		return cred, nil
	}
	if !allowRefresh {
		return Credential{}, mcperr.Unauthorized("credential expired and refresh not permitted for this call")
	}
	if !hasRefresh {
		return Credential{}, mcperr.Unauthorized("credential expired and no refresh token is available")
	}

	result, err, shared := m.group.Do(refreshKey, func() (interface{}, error) {
		// Re-check after winning the flight: a concurrent refresh may have
		// already replaced the credential.
		m.mu.RLock()
		cur := m.current
		rt := m.refreshToken
		m.mu.RUnlock()
		if cur.Valid(m.margin) {
			return cur, nil
		}

		fresh, newRT, err := m.client.RefreshCredential(ctx, rt)
		if err != nil {
			return Credential{}, err
		}
		m.mu.Lock()
		m.current = fresh
		if newRT != "" {
			m.refreshToken = newRT
		}
		m.mu.Unlock()
		logging.Info("Token", "refreshed credential (expires %s)", describeExpiry(fresh.ExpiresAt))
		return fresh, nil
	})
	if err != nil {
		return Credential{}, err
	}
	if shared {
		logging.Debug("Token", "refresh coalesced with concurrent caller")
	}
	return result.(Credential), nil
}

// expiryOf extracts the exp claim without verifying the signature. A token
// whose claims cannot be read gets a zero expiry and is passed through
// unchanged; the upstream remains the authority on its validity.
func expiryOf(bearer string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(bearer, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// DisplayClaims returns non-authoritative identity context (subject, email,
// project) from a bearer token's unverified claims, for diagnostics only.
// It must never feed an authorization decision.
func DisplayClaims(bearer string) map[string]string {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(bearer, claims); err != nil {
		return nil
	}
	out := map[string]string{}
	for _, key := range []string{"sub", "email", "name", "project"} {
		if v, ok := claims[key].(string); ok && v != "" {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func describeExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
