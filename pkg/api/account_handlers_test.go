package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raildesk/raildesk/pkg/audit"
	"github.com/raildesk/raildesk/pkg/contextkeys"
	"github.com/raildesk/raildesk/pkg/identity"
	"github.com/raildesk/raildesk/pkg/idp"
)

// memStore is an in-memory identity.Store for handler tests
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*identity.User
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, users: make(map[int64]*identity.User)}
}

func (s *memStore) add(u *identity.User) *identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	cp.ID = s.nextID
	s.nextID++
	s.users[cp.ID] = &cp
	return &cp
}

func (s *memStore) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, identity.ErrNotFound
}

func (s *memStore) FindByExternalID(ctx context.Context, externalID string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if externalID != "" && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *memStore) Create(ctx context.Context, user *identity.User) (*identity.User, error) {
	if _, err := s.FindByEmail(ctx, user.Email); err == nil {
		return nil, identity.ErrDuplicate
	}
	if user.Role == "" {
		user.Role = identity.RolePassenger
	}
	return s.add(user), nil
}

func (s *memStore) Update(ctx context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return identity.ErrNotFound
	}
	*stored = *user
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return identity.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) LinkExternalID(ctx context.Context, userID int64, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, identity.ErrNotFound
	}
	if u.ExternalID != "" {
		return false, nil
	}
	u.ExternalID = externalID
	return true, nil
}

func (s *memStore) Promote(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, identity.ErrNotFound
	}
	if u.Role == identity.RoleAdmin {
		return false, nil
	}
	u.Role = identity.RoleAdmin
	u.IsAdmin = true
	u.IsStaff = true
	return true, nil
}

func (s *memStore) UpsertProfile(ctx context.Context, user *identity.User) (*identity.User, bool, error) {
	if existing, err := s.FindByEmail(ctx, user.Email); err == nil {
		user.ID = existing.ID
		user.DateJoined = existing.DateJoined
		if err := s.Update(ctx, user); err != nil {
			return nil, false, err
		}
		cp := *user
		return &cp, false, nil
	}
	created, err := s.Create(ctx, user)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *memStore) List(ctx context.Context) ([]*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*identity.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// recordingAuditor captures audit events for assertions
type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Record(ctx context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditor) byType(t audit.EventType) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeAdminClient is an in-memory idp.AdminClient
type fakeAdminClient struct {
	mu       sync.Mutex
	accounts map[string]string // email -> external id
	claims   map[string]bool
	claimErr error
}

func newFakeAdminClient() *fakeAdminClient {
	return &fakeAdminClient{accounts: make(map[string]string), claims: make(map[string]bool)}
}

func (f *fakeAdminClient) AdminClaim(ctx context.Context, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.claims[externalID], nil
}

func (f *fakeAdminClient) SetAdminClaim(ctx context.Context, externalID string, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claims[externalID] = admin
	return nil
}

func (f *fakeAdminClient) LookupByEmail(ctx context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.accounts[email]; ok {
		return id, nil
	}
	return "", idp.ErrAccountNotFound
}

func (f *fakeAdminClient) CreateAccount(ctx context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "prov-" + email
	f.accounts[email] = id
	return id, nil
}

func request(method, path string, body interface{}, authCtx *identity.AuthContext) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if authCtx != nil {
		req = req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
	}
	return req
}

func errorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	return out.Code
}

func authFor(u *identity.User) *identity.AuthContext {
	return &identity.AuthContext{
		Authenticated:   true,
		SubjectVerified: true,
		UserID:          u.ID,
		Role:            u.Role,
		Email:           u.Email,
		ExternalID:      u.ExternalID,
		User:            u,
	}
}

func TestGetProfile(t *testing.T) {
	store := newMemStore()
	server := NewServer(store, nil, audit.NopRecorder{}, nil)

	t.Run("no credential gets 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/profile", nil, identity.Unauthenticated()))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTHENTICATION_REQUIRED", errorCode(t, w.Body))
	})

	t.Run("verified but unregistered gets 404, not a new account", func(t *testing.T) {
		authCtx := identity.Unauthenticated()
		authCtx.SubjectVerified = true
		authCtx.Email = "ghost@example.com"
		authCtx.ExternalID = "sub-ghost"

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/profile", nil, authCtx))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PROFILE_NOT_FOUND", errorCode(t, w.Body))
		assert.Empty(t, store.users, "a profile read must never create accounts")
	})

	t.Run("registered user gets profile", func(t *testing.T) {
		user := store.add(&identity.User{
			ExternalID: "sub-1", Email: "p@example.com", FullName: "Passenger One",
			Role: identity.RolePassenger, IsActive: true,
		})

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/profile", nil, authFor(user)))
		require.Equal(t, http.StatusOK, w.Code)

		var got identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "p@example.com", got.Email)
		assert.Equal(t, "Passenger One", got.FullName)
	})
}

func TestRegisterProfile(t *testing.T) {
	store := newMemStore()
	server := NewServer(store, nil, audit.NopRecorder{}, nil)

	t.Run("anonymous pre-registration creates an unlinked row", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/profile", map[string]string{
			"email":     "Pre@Example.com",
			"full_name": "Pre Registered",
		}, identity.Unauthenticated()))
		require.Equal(t, http.StatusCreated, w.Code)

		var got identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "pre@example.com", got.Email)
		assert.Empty(t, got.ExternalID, "pre-registration binds no subject")
		assert.Equal(t, identity.RolePassenger, got.Role)
	})

	t.Run("pre-registered row is claimed on first sign-in", func(t *testing.T) {
		r := identity.NewReconciler(store, nil, nil, nil, nil, nil)
		user, _, err := r.Reconcile(context.Background(),
			&idp.VerifiedSubject{ExternalID: "sub-pre", Email: "pre@example.com"})
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "sub-pre", user.ExternalID)
	})

	t.Run("anonymous re-registration is a conflict, not an overwrite", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/profile", map[string]string{
			"email": "pre@example.com",
		}, identity.Unauthenticated()))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE", errorCode(t, w.Body))

		stored, err := store.FindByEmail(context.Background(), "pre@example.com")
		require.NoError(t, err)
		assert.Equal(t, "sub-pre", stored.ExternalID, "the subject binding survives")
	})

	t.Run("anonymous registration without email gets 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/profile",
			map[string]string{"full_name": "X"}, identity.Unauthenticated()))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("creates account from verified identity", func(t *testing.T) {
		authCtx := identity.Unauthenticated()
		authCtx.SubjectVerified = true
		authCtx.Email = "new@example.com"
		authCtx.ExternalID = "sub-new"

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/profile", map[string]string{
			"full_name":    "New User",
			"phone_number": "555-0101",
		}, authCtx))
		require.Equal(t, http.StatusCreated, w.Code)

		var got identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "new@example.com", got.Email, "email comes from the token, not the body")
		assert.Equal(t, "sub-new", got.ExternalID)
		assert.Equal(t, identity.RolePassenger, got.Role)
	})

	t.Run("re-registration updates without changing role", func(t *testing.T) {
		admin := store.add(&identity.User{
			ExternalID: "sub-a", Email: "a@example.com",
			Role: identity.RoleAdmin, IsAdmin: true, IsStaff: true, IsActive: true,
		})

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/profile", map[string]string{
			"full_name": "Renamed Admin",
		}, authFor(admin)))
		require.Equal(t, http.StatusOK, w.Code)

		var got identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "Renamed Admin", got.FullName)
		assert.Equal(t, identity.RoleAdmin, got.Role, "signup must not touch privileges")
	})

	t.Run("rejects identity without email", func(t *testing.T) {
		authCtx := identity.Unauthenticated()
		authCtx.SubjectVerified = true
		authCtx.ExternalID = "sub-noemail"

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/profile", map[string]string{}, authCtx))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateProfile(t *testing.T) {
	store := newMemStore()
	server := NewServer(store, nil, audit.NopRecorder{}, nil)
	user := store.add(&identity.User{
		ExternalID: "sub-1", Email: "p@example.com", FullName: "Before",
		Role: identity.RolePassenger, IsActive: true,
	})

	t.Run("guarded", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("PUT", "/api/accounts/profile",
			map[string]string{"full_name": "After"}, identity.Unauthenticated()))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTHENTICATION_REQUIRED", errorCode(t, w.Body))
	})

	t.Run("updates fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("PUT", "/api/accounts/profile", map[string]string{
			"full_name": "After",
			"address":   "Platform 9",
		}, authFor(user)))
		require.Equal(t, http.StatusOK, w.Code)

		stored, err := store.FindByEmail(context.Background(), "p@example.com")
		require.NoError(t, err)
		assert.Equal(t, "After", stored.FullName)
		assert.Equal(t, "Platform 9", stored.Address)
	})
}

func TestDeleteProfile(t *testing.T) {
	store := newMemStore()
	auditor := &recordingAuditor{}
	server := NewServer(store, nil, auditor, nil)
	user := store.add(&identity.User{
		ExternalID: "sub-1", Email: "p@example.com",
		Role: identity.RolePassenger, IsActive: true,
	})

	t.Run("guarded", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("DELETE", "/api/accounts/profile", nil, identity.Unauthenticated()))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTHENTICATION_REQUIRED", errorCode(t, w.Body))
	})

	t.Run("deletes own account", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("DELETE", "/api/accounts/profile", nil, authFor(user)))
		assert.Equal(t, http.StatusNoContent, w.Code)

		_, err := store.FindByEmail(context.Background(), "p@example.com")
		assert.ErrorIs(t, err, identity.ErrNotFound)
		require.Len(t, auditor.byType(audit.EventTypeAccountDeleted), 1)
		assert.Equal(t, "p@example.com", auditor.byType(audit.EventTypeAccountDeleted)[0].Email)
	})

	t.Run("already deleted gets 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("DELETE", "/api/accounts/profile", nil, authFor(user)))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PROFILE_NOT_FOUND", errorCode(t, w.Body))
	})
}

func TestListUsers(t *testing.T) {
	store := newMemStore()
	server := NewServer(store, nil, audit.NopRecorder{}, nil)
	admin := store.add(&identity.User{
		Email: "a@example.com", Role: identity.RoleAdmin, IsAdmin: true, IsStaff: true, IsActive: true,
	})
	staff := store.add(&identity.User{
		Email: "s@example.com", Role: identity.RoleStaff, IsStaff: true, IsActive: true,
	})

	t.Run("staff is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/users", nil, authFor(staff)))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "ADMIN_REQUIRED", errorCode(t, w.Body))
	})

	t.Run("admin lists everyone", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/users", nil, authFor(admin)))
		require.Equal(t, http.StatusOK, w.Code)

		var got []identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})
}

func TestGetUser(t *testing.T) {
	store := newMemStore()
	server := NewServer(store, nil, audit.NopRecorder{}, nil)
	admin := store.add(&identity.User{
		Email: "a@example.com", Role: identity.RoleAdmin, IsAdmin: true, IsStaff: true, IsActive: true,
	})
	passenger := store.add(&identity.User{
		Email: "p@example.com", Role: identity.RolePassenger, IsActive: true,
	})

	t.Run("admin fetches by id", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/users/2", nil, authFor(admin)))
		require.Equal(t, http.StatusOK, w.Code)

		var got identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "p@example.com", got.Email)
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/users/99", nil, authFor(admin)))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PROFILE_NOT_FOUND", errorCode(t, w.Body))
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("GET", "/api/accounts/users/1", nil, authFor(passenger)))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "ADMIN_REQUIRED", errorCode(t, w.Body))
	})
}

func TestCreateStaff(t *testing.T) {
	store := newMemStore()
	adminClient := newFakeAdminClient()
	server := NewServer(store, adminClient, audit.NopRecorder{}, nil)
	admin := store.add(&identity.User{
		Email: "a@example.com", Role: identity.RoleAdmin, IsAdmin: true, IsStaff: true, IsActive: true,
	})

	t.Run("admin creates staff with provider account", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/staff", map[string]string{
			"email":     "Staff@Example.com",
			"password":  "secret",
			"full_name": "Staff Member",
		}, authFor(admin)))
		require.Equal(t, http.StatusCreated, w.Code)

		var got identity.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "staff@example.com", got.Email)
		assert.Equal(t, identity.RoleStaff, got.Role)
		assert.True(t, got.IsStaff)
		assert.Equal(t, "prov-staff@example.com", got.ExternalID)
	})

	t.Run("duplicate email gets 409", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/staff", map[string]string{
			"email":    "staff@example.com",
			"password": "secret",
		}, authFor(admin)))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE", errorCode(t, w.Body))
	})

	t.Run("missing fields get 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/staff", map[string]string{
			"email": "incomplete@example.com",
		}, authFor(admin)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		passenger := store.add(&identity.User{
			Email: "p@example.com", Role: identity.RolePassenger, IsActive: true,
		})
		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/staff", map[string]string{
			"email":    "x@example.com",
			"password": "secret",
		}, authFor(passenger)))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestVerifyAdmin(t *testing.T) {
	t.Run("local admin with missing claim gets it set", func(t *testing.T) {
		store := newMemStore()
		adminClient := newFakeAdminClient()
		server := NewServer(store, adminClient, audit.NopRecorder{}, nil)
		admin := store.add(&identity.User{
			ExternalID: "sub-a", Email: "a@example.com",
			Role: identity.RoleAdmin, IsAdmin: true, IsStaff: true, IsActive: true,
		})

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/verify-admin", nil, authFor(admin)))
		require.Equal(t, http.StatusOK, w.Code)

		var got verifyAdminResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.True(t, got.IsAdmin)
		assert.True(t, got.ClaimPresent)
		assert.True(t, got.ClaimSynced)
		assert.True(t, adminClient.claims["sub-a"])
	})

	t.Run("claim without local role promotes locally", func(t *testing.T) {
		store := newMemStore()
		adminClient := newFakeAdminClient()
		server := NewServer(store, adminClient, audit.NopRecorder{}, nil)
		user := store.add(&identity.User{
			ExternalID: "sub-p", Email: "p@example.com",
			Role: identity.RolePassenger, IsActive: true,
		})
		adminClient.claims["sub-p"] = true

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/verify-admin", nil, authFor(user)))
		require.Equal(t, http.StatusOK, w.Code)

		var got verifyAdminResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.True(t, got.IsAdmin)

		stored, _ := store.FindByEmail(context.Background(), "p@example.com")
		assert.Equal(t, identity.RoleAdmin, stored.Role)
	})

	t.Run("plain passenger stays a passenger", func(t *testing.T) {
		store := newMemStore()
		adminClient := newFakeAdminClient()
		server := NewServer(store, adminClient, audit.NopRecorder{}, nil)
		user := store.add(&identity.User{
			ExternalID: "sub-p", Email: "p@example.com",
			Role: identity.RolePassenger, IsActive: true,
		})

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/verify-admin", nil, authFor(user)))
		require.Equal(t, http.StatusOK, w.Code)

		var got verifyAdminResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.False(t, got.IsAdmin)
		assert.False(t, got.ClaimPresent)
	})

	t.Run("provider failure still answers from local state", func(t *testing.T) {
		store := newMemStore()
		adminClient := newFakeAdminClient()
		adminClient.claimErr = context.DeadlineExceeded
		server := NewServer(store, adminClient, audit.NopRecorder{}, nil)
		admin := store.add(&identity.User{
			ExternalID: "sub-a", Email: "a@example.com",
			Role: identity.RoleAdmin, IsAdmin: true, IsStaff: true, IsActive: true,
		})

		w := httptest.NewRecorder()
		server.ServeHTTP(w, request("POST", "/api/accounts/verify-admin", nil, authFor(admin)))
		require.Equal(t, http.StatusOK, w.Code)

		var got verifyAdminResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.True(t, got.IsAdmin)
		assert.False(t, got.ClaimSynced)
	})
}
