// Package identity resolves the current user, owns all account mutations and
// enforces the credit ledger. There is exactly one live user per session;
// every other service goes through this one to learn who is acting.
package identity

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/credit"
	"github.com/studyflow-app/studyflow-core/internal/app/domain/user"
	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/errors"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
	"github.com/studyflow-app/studyflow-core/supabase/client"
)

const sessionTokenKey = "studyflow_session_token"

// Remote is the subset of the Supabase client the identity service uses.
// Nil when no remote backend is configured.
type Remote interface {
	SignUp(ctx context.Context, email, password string, opts *client.SignUpOptions) (*client.AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (*client.AuthResponse, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*client.User, error)
}

// Service is the identity resolver and credit ledger.
type Service struct {
	// mu serializes every read-merge-write on the active user, so the
	// credit check and deduction happen as one indivisible step.
	mu sync.Mutex

	durable storage.KV
	session storage.KV
	remote  Remote
	ledger  storage.Collection[credit.Transaction]
	log     *logger.Logger

	// onToken, when set, observes every session token change. The wiring
	// layer uses it to keep the table client's bearer current.
	onToken func(token string)

	// onSignOut observers run after a sign-out clears the session. The
	// stores use them to drop their replay snapshots.
	onSignOut []func()
}

// OnToken installs the session token observer. Call before any sign-in.
func (s *Service) OnToken(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onToken = fn
}

// OnSignOut registers fn to run after every sign-out.
func (s *Service) OnSignOut(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

// New creates the identity service. remote and ledger may be nil.
func New(durable, session storage.KV, remote Remote, ledger storage.Collection[credit.Transaction], log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	return &Service{
		durable: durable,
		session: session,
		remote:  remote,
		ledger:  ledger,
		log:     log,
	}
}

// localUser is the record kept in the local users database. Passwords are
// stored as bcrypt hashes, never in the clear.
type localUser struct {
	user.User
	PasswordHash string `json:"passwordHash"`
}

// =============================================================================
// Resolution
// =============================================================================

// ResolveSync returns the cached current user with zero I/O, or nil. The
// remember-me preference selects which storage tier is consulted.
func (s *Service) ResolveSync() *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveSyncLocked()
}

func (s *Service) resolveSyncLocked() *user.User {
	tier := s.tierLocked()

	if raw, ok, err := tier.Get(storage.KeyActiveUser); err == nil && ok {
		var u user.User
		if json.Unmarshal([]byte(raw), &u) == nil {
			return &u
		}
	}

	// A remembered remote session can be rebuilt from the cached token's
	// claims without network I/O.
	if s.remote != nil && s.rememberedLocked() {
		if token := s.cachedTokenLocked(); token != "" {
			if u := userFromToken(token); u != nil {
				return u
			}
		}
	}
	return nil
}

// Resolve reconciles the cached user with the remote identity provider when
// one is configured, else defers to ResolveSync.
func (s *Service) Resolve(ctx context.Context) (*user.User, error) {
	if s.remote == nil {
		return s.ResolveSync(), nil
	}

	token := s.cachedToken()
	if token == "" {
		return s.ResolveSync(), nil
	}

	if _, err := s.remote.GetUser(ctx, token); err != nil {
		return nil, errors.Remote("resolve user", err)
	}
	return s.ResolveSync(), nil
}

// userFromToken rebuilds the identity from the session JWT's claims. The
// signature is not verified here; the token was issued to us by the provider
// and every privileged call revalidates it server-side.
func userFromToken(token string) *user.User {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil
	}

	name := strings.SplitN(email, "@", 2)[0]
	avatar := user.DefaultAvatar(email)
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		if v, ok := meta["name"].(string); ok && v != "" {
			name = v
		}
		if v, ok := meta["avatar"].(string); ok && v != "" {
			avatar = v
		}
	}

	return &user.User{
		ID:         sub,
		Email:      email,
		Name:       name,
		Plan:       user.PlanPro,
		Avatar:     avatar,
		Credits:    user.PlanCredits[user.PlanPro],
		MaxCredits: user.PlanCredits[user.PlanPro],
		JoinedAt:   time.Now().UTC(),
		Language:   "English",
	}
}

// =============================================================================
// Sign-up / sign-in / sign-out
// =============================================================================

// SignUp registers a new account and makes it the active user.
func (s *Service) SignUp(ctx context.Context, email, password string, rememberMe bool) (*user.User, error) {
	name := strings.SplitN(email, "@", 2)[0]
	avatar := user.DefaultAvatar(email)

	if s.remote != nil {
		resp, err := s.remote.SignUp(ctx, email, password, &client.SignUpOptions{
			Data: map[string]any{"name": name, "avatar": avatar},
		})
		if err != nil {
			return nil, errors.Remote("sign up", err)
		}

		u := user.User{
			ID:         resp.User.ID,
			Email:      resp.User.Email,
			Name:       name,
			Plan:       user.PlanFree,
			Avatar:     avatar,
			Credits:    user.PlanCredits[user.PlanFree],
			MaxCredits: user.PlanCredits[user.PlanFree],
			JoinedAt:   time.Now().UTC(),
			Language:   "English",
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.setRememberLocked(rememberMe)
		if err := s.storeSessionLocked(u, resp.AccessToken); err != nil {
			return nil, err
		}
		s.log.Info("user signed up", "user_id", u.ID, "plan", u.Plan)
		return &u, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.localUsersLocked()
	if err != nil {
		return nil, err
	}
	for _, existing := range users {
		if existing.Email == email {
			return nil, errors.DuplicateIdentity(email)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("hash password: " + err.Error())
	}

	u := user.User{
		ID:         "local_" + uuid.NewString(),
		Email:      email,
		Name:       name,
		Plan:       user.PlanFree,
		Avatar:     avatar,
		Credits:    user.PlanCredits[user.PlanFree],
		MaxCredits: user.PlanCredits[user.PlanFree],
		JoinedAt:   time.Now().UTC(),
		Language:   "English",
	}

	users = append(users, localUser{User: u, PasswordHash: string(hash)})
	if err := s.saveLocalUsersLocked(users); err != nil {
		return nil, err
	}

	s.setRememberLocked(rememberMe)
	if err := s.storeSessionLocked(u, ""); err != nil {
		return nil, err
	}
	s.log.Info("user signed up", "user_id", u.ID, "plan", u.Plan)
	return &u, nil
}

// SignIn authenticates an existing account and makes it the active user.
func (s *Service) SignIn(ctx context.Context, email, password string, rememberMe bool) (*user.User, error) {
	if s.remote != nil {
		resp, err := s.remote.SignIn(ctx, email, password)
		if err != nil {
			return nil, errors.Unauthenticated("invalid email or password")
		}

		name := strings.SplitN(resp.User.Email, "@", 2)[0]
		avatar := user.DefaultAvatar(resp.User.Email)
		if v, ok := resp.User.UserMetadata["name"].(string); ok && v != "" {
			name = v
		}
		if v, ok := resp.User.UserMetadata["avatar"].(string); ok && v != "" {
			avatar = v
		}

		u := user.User{
			ID:         resp.User.ID,
			Email:      resp.User.Email,
			Name:       name,
			Plan:       user.PlanPro,
			Avatar:     avatar,
			Credits:    user.PlanCredits[user.PlanPro],
			MaxCredits: user.PlanCredits[user.PlanPro],
			JoinedAt:   time.Now().UTC(),
			Language:   "English",
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.setRememberLocked(rememberMe)
		if err := s.storeSessionLocked(u, resp.AccessToken); err != nil {
			return nil, err
		}
		s.log.Info("user signed in", "user_id", u.ID)
		return &u, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.localUsersLocked()
	if err != nil {
		return nil, err
	}
	for _, candidate := range users {
		if candidate.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(candidate.PasswordHash), []byte(password)) != nil {
			break
		}
		s.setRememberLocked(rememberMe)
		if err := s.storeSessionLocked(candidate.User, ""); err != nil {
			return nil, err
		}
		s.log.Info("user signed in", "user_id", candidate.ID)
		u := candidate.User
		return &u, nil
	}
	return nil, errors.Unauthenticated("invalid email or password")
}

// SignOut ends the session and clears both storage tiers. A remote sign-out
// failure is reported after local state is cleared.
func (s *Service) SignOut(ctx context.Context) error {
	var remoteErr error
	if s.remote != nil {
		if token := s.cachedToken(); token != "" {
			if err := s.remote.SignOut(ctx, token); err != nil {
				remoteErr = errors.Remote("sign out", err)
			}
		}
	}

	s.mu.Lock()
	_ = s.durable.Remove(storage.KeyActiveUser)
	_ = s.session.Remove(storage.KeyActiveUser)
	_ = s.durable.Remove(sessionTokenKey)
	_ = s.session.Remove(sessionTokenKey)
	_ = s.durable.Remove(storage.KeyRememberMe)
	if s.onToken != nil {
		s.onToken("")
	}
	observers := append([]func(){}, s.onSignOut...)
	s.mu.Unlock()

	// Observers may call back into the service, so they run unlocked.
	for _, fn := range observers {
		fn()
	}
	s.log.Info("user signed out")
	return remoteErr
}

// =============================================================================
// Update
// =============================================================================

// Update merges the changes into the current user, persists the merged
// record and returns the snapshot. The merge is serialized with the credit
// ledger so an update cannot interleave with a deduction.
func (s *Service) Update(ctx context.Context, changes user.Changes) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(changes)
}

func (s *Service) updateLocked(changes user.Changes) (*user.User, error) {
	current := s.resolveSyncLocked()
	if current == nil {
		return nil, errors.Unauthenticated("")
	}

	merged := changes.Apply(*current)
	if err := s.storeActiveLocked(merged); err != nil {
		return nil, err
	}

	// The local fallback also keeps the users database in sync so the
	// change survives a sign-out/sign-in cycle.
	if s.remote == nil {
		users, err := s.localUsersLocked()
		if err != nil {
			return nil, err
		}
		for i := range users {
			if users[i].ID == merged.ID {
				users[i].User = merged
				if err := s.saveLocalUsersLocked(users); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	return &merged, nil
}

// =============================================================================
// Storage tiers
// =============================================================================

// tierLocked returns the store the active session lives in. Remember-me
// selects the durable tier; reads and writes must agree within one session.
func (s *Service) tierLocked() storage.KV {
	if s.rememberedLocked() {
		return s.durable
	}
	return s.session
}

func (s *Service) rememberedLocked() bool {
	v, ok, err := s.durable.Get(storage.KeyRememberMe)
	return err == nil && ok && v == "true"
}

func (s *Service) setRememberLocked(remember bool) {
	if remember {
		_ = s.durable.Set(storage.KeyRememberMe, "true")
	} else {
		_ = s.durable.Remove(storage.KeyRememberMe)
	}
}

func (s *Service) storeSessionLocked(u user.User, token string) error {
	if err := s.storeActiveLocked(u); err != nil {
		return err
	}
	if token != "" {
		if err := s.tierLocked().Set(sessionTokenKey, token); err != nil {
			return errors.New("store session token: " + err.Error())
		}
		if s.onToken != nil {
			s.onToken(token)
		}
	}
	return nil
}

func (s *Service) storeActiveLocked(u user.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return errors.New("encode user: " + err.Error())
	}
	if err := s.tierLocked().Set(storage.KeyActiveUser, string(raw)); err != nil {
		return errors.New("store user: " + err.Error())
	}
	return nil
}

func (s *Service) cachedToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedTokenLocked()
}

func (s *Service) cachedTokenLocked() string {
	v, ok, err := s.tierLocked().Get(sessionTokenKey)
	if err != nil || !ok {
		return ""
	}
	return v
}

// AccessToken returns the cached session token, if any, for wiring into
// clients that need the user bearer.
func (s *Service) AccessToken() string {
	return s.cachedToken()
}

func (s *Service) localUsersLocked() ([]localUser, error) {
	raw, ok, err := s.durable.Get(storage.KeyUsersDB)
	if err != nil {
		return nil, errors.New("read users database: " + err.Error())
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var users []localUser
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, errors.New("decode users database: " + err.Error())
	}
	return users, nil
}

func (s *Service) saveLocalUsersLocked(users []localUser) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return errors.New("encode users database: " + err.Error())
	}
	if err := s.durable.Set(storage.KeyUsersDB, string(raw)); err != nil {
		return errors.New("write users database: " + err.Error())
	}
	return nil
}
