package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/raildesk/raildesk/pkg/audit"
	"github.com/raildesk/raildesk/pkg/httputil"
	"github.com/raildesk/raildesk/pkg/identity"
	"github.com/raildesk/raildesk/pkg/idp"
	"github.com/raildesk/raildesk/pkg/middleware"
	"github.com/raildesk/raildesk/pkg/observability"
)

// AccountHandlers serves the /api/accounts endpoints
type AccountHandlers struct {
	store       identity.Store
	adminClient idp.AdminClient
	auditor     audit.Recorder
	logger      *observability.Logger
}

// NewAccountHandlers creates the account endpoint handlers. adminClient may
// be nil; staff creation and claim verification then run local-only.
func NewAccountHandlers(store identity.Store, adminClient idp.AdminClient, auditor audit.Recorder, logger *observability.Logger) *AccountHandlers {
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AccountHandlers{
		store:       store,
		adminClient: adminClient,
		auditor:     auditor,
		logger:      logger,
	}
}

// RegisterRoutes registers account routes with the router
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/accounts/profile", h.getProfile).Methods("GET")
	router.HandleFunc("/api/accounts/profile", h.registerProfile).Methods("POST")
	router.Handle("/api/accounts/profile", requireAuth(h.updateProfile)).Methods("PUT")
	router.Handle("/api/accounts/profile", requireAuth(h.deleteProfile)).Methods("DELETE")
	router.Handle("/api/accounts/users", requireAdmin(h.listUsers)).Methods("GET")
	router.Handle("/api/accounts/users/{id:[0-9]+}", requireAdmin(h.getUser)).Methods("GET")
	router.Handle("/api/accounts/staff", requireAdmin(h.createStaff)).Methods("POST")
	router.Handle("/api/accounts/verify-admin", requireAuth(h.verifyAdmin)).Methods("POST")
}

// getProfile returns the caller's account. A verified subject without a
// local account gets 404 PROFILE_NOT_FOUND, never a silently created row.
func (h *AccountHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || (!authCtx.Authenticated && !authCtx.SubjectVerified) {
		httputil.WriteCodedError(w, http.StatusUnauthorized,
			"authentication required", httputil.CodeAuthenticationRequired)
		return
	}
	if !authCtx.Authenticated {
		httputil.WriteCodedError(w, http.StatusNotFound,
			"no account registered for this identity", httputil.CodeProfileNotFound)
		return
	}
	httputil.WriteSuccess(w, authCtx.User)
}

// profileRequest carries the mutable profile fields. Email is only read on
// anonymous pre-registration; a verified caller's email comes from the token.
type profileRequest struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
}

// registerProfile creates or refreshes the caller's account, the one
// endpoint allowed to mint passenger rows. A verified caller registers
// under the token's email and subject id. An anonymous caller
// pre-registers by email: the row is created with no subject binding and
// is claimed by the email-link path on the first sign-in.
func (h *AccountHandlers) registerProfile(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || !authCtx.SubjectVerified {
		h.preRegister(w, r)
		return
	}
	if authCtx.Email == "" {
		httputil.WriteValidationError(w, "verified identity has no email address")
		return
	}

	var req profileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user := &identity.User{
		ExternalID:  authCtx.ExternalID,
		Email:       authCtx.Email,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Gender:      strings.TrimSpace(req.Gender),
		Address:     strings.TrimSpace(req.Address),
		Role:        identity.RolePassenger,
		IsActive:    true,
	}
	// Re-registration keeps the stored role; signup never grants or
	// removes privileges
	if authCtx.User != nil {
		user.Role = authCtx.User.Role
		user.IsAdmin = authCtx.User.IsAdmin
		user.IsStaff = authCtx.User.IsStaff
	}

	saved, created, err := h.store.UpsertProfile(r.Context(), user)
	if err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			httputil.WriteCodedError(w, http.StatusConflict,
				"identity is already registered to another account", httputil.CodeDuplicate)
			return
		}
		h.logger.WithError(err).Error("failed to register profile")
		httputil.WriteInternalError(w, err)
		return
	}

	if created {
		httputil.WriteCreated(w, saved)
		return
	}
	httputil.WriteSuccess(w, saved)
}

// preRegister creates an unlinked passenger row for a body-supplied email.
// It never updates: an existing account, linked or not, is a conflict, so
// pre-registration can neither erase a subject binding nor touch a profile
// it does not own.
func (h *AccountHandlers) preRegister(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		httputil.WriteValidationError(w, "email is required")
		return
	}

	user := &identity.User{
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Gender:      strings.TrimSpace(req.Gender),
		Address:     strings.TrimSpace(req.Address),
		Role:        identity.RolePassenger,
		IsActive:    true,
	}
	created, err := h.store.Create(r.Context(), user)
	if err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			httputil.WriteCodedError(w, http.StatusConflict,
				"an account with this email already exists", httputil.CodeDuplicate)
			return
		}
		h.logger.WithError(err).Error("failed to pre-register profile")
		httputil.WriteInternalError(w, err)
		return
	}

	h.logger.WithField("email", created.Email).Info("pre-registered passenger account")
	httputil.WriteCreated(w, created)
}

// updateProfile updates the caller's mutable profile fields
func (h *AccountHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	var req profileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user := authCtx.User
	user.FullName = strings.TrimSpace(req.FullName)
	user.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	user.Gender = strings.TrimSpace(req.Gender)
	user.Address = strings.TrimSpace(req.Address)

	if err := h.store.Update(r.Context(), user); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			httputil.WriteCodedError(w, http.StatusNotFound,
				"no account registered for this identity", httputil.CodeProfileNotFound)
			return
		}
		h.logger.WithError(err).Error("failed to update profile")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// deleteProfile removes the caller's own account. The audit entry survives
// the row; the foreign key nulls its user reference.
func (h *AccountHandlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	if err := h.store.Delete(r.Context(), authCtx.UserID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			httputil.WriteCodedError(w, http.StatusNotFound,
				"no account registered for this identity", httputil.CodeProfileNotFound)
			return
		}
		h.logger.WithError(err).Error("failed to delete account")
		httputil.WriteInternalError(w, err)
		return
	}

	h.logger.WithField("email", authCtx.Email).Info("deleted account")
	if err := h.auditor.Record(r.Context(), audit.Event{
		Type:       audit.EventTypeAccountDeleted,
		Email:      authCtx.Email,
		ExternalID: authCtx.ExternalID,
	}); err != nil {
		h.logger.WithError(err).Warn("failed to record account deletion audit event")
	}
	httputil.WriteNoContent(w)
}

// listUsers returns every account, admin-only
func (h *AccountHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list users")
		httputil.WriteInternalError(w, err)
		return
	}
	if users == nil {
		users = []*identity.User{}
	}
	httputil.WriteSuccess(w, users)
}

// getUser returns a single account by id, admin-only
func (h *AccountHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			httputil.WriteCodedError(w, http.StatusNotFound,
				"no account with this id", httputil.CodeProfileNotFound)
			return
		}
		h.logger.WithError(err).Error("failed to fetch user")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// staffRequest is the admin-supplied staff account definition
type staffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// createStaff provisions a staff account: provider account first, then the
// local row. A provider account that already exists is reused rather than
// treated as an error, so a half-completed earlier attempt can be retried.
func (h *AccountHandlers) createStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		httputil.WriteValidationError(w, "email and password are required")
		return
	}

	externalID := ""
	if h.adminClient != nil {
		var err error
		externalID, err = h.adminClient.LookupByEmail(r.Context(), req.Email)
		if errors.Is(err, idp.ErrAccountNotFound) {
			externalID, err = h.adminClient.CreateAccount(r.Context(), req.Email, req.Password)
		}
		if err != nil {
			h.logger.WithError(err).WithField("email", req.Email).
				Error("failed to provision provider account for staff")
			httputil.WriteCodedError(w, http.StatusBadGateway,
				"identity provider unavailable", httputil.CodeAuthError)
			return
		}
	}

	user := &identity.User{
		ExternalID: externalID,
		Email:      req.Email,
		FullName:   strings.TrimSpace(req.FullName),
		Role:       identity.RoleStaff,
		IsStaff:    true,
		IsActive:   true,
	}
	created, err := h.store.Create(r.Context(), user)
	if err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			httputil.WriteCodedError(w, http.StatusConflict,
				"an account with this email already exists", httputil.CodeDuplicate)
			return
		}
		h.logger.WithError(err).Error("failed to create staff user")
		httputil.WriteInternalError(w, err)
		return
	}

	actor := middleware.GetAuthContext(r)
	h.logger.WithField("email", created.Email).
		WithField("created_by", actor.Email).
		Info("created staff account")
	if err := h.auditor.Record(r.Context(), audit.Event{
		Type:       audit.EventTypeStaffCreated,
		UserID:     &created.ID,
		Email:      created.Email,
		ExternalID: externalID,
		Detail:     "created by " + actor.Email,
	}); err != nil {
		h.logger.WithError(err).Warn("failed to record staff creation audit event")
	}

	httputil.WriteCreated(w, created)
}

// verifyAdminResponse reports both sides of the admin privilege state
type verifyAdminResponse struct {
	IsAdmin      bool `json:"is_admin"`
	ClaimPresent bool `json:"claim_present"`
	ClaimSynced  bool `json:"claim_synced"`
}

// verifyAdmin reports the caller's admin standing and converges the
// provider claim with the local role. The local role is authoritative: a
// missing claim on a local admin gets set, a present claim on a non-admin
// promotes locally (the allow-list or an earlier grant put it there).
func (h *AccountHandlers) verifyAdmin(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	resp := verifyAdminResponse{IsAdmin: authCtx.IsAdmin()}

	if h.adminClient == nil || authCtx.ExternalID == "" {
		httputil.WriteSuccess(w, resp)
		return
	}

	claim, err := h.adminClient.AdminClaim(r.Context(), authCtx.ExternalID)
	if err != nil {
		h.logger.WithError(err).Warn("failed to read admin claim from provider")
		httputil.WriteSuccess(w, resp)
		return
	}
	resp.ClaimPresent = claim

	switch {
	case resp.IsAdmin && !claim:
		if err := h.adminClient.SetAdminClaim(r.Context(), authCtx.ExternalID, true); err != nil {
			h.logger.WithError(err).Warn("failed to propagate admin claim to provider")
		} else {
			resp.ClaimPresent = true
			resp.ClaimSynced = true
		}
	case claim && !resp.IsAdmin:
		promoted, err := h.store.Promote(r.Context(), authCtx.UserID)
		if err != nil {
			h.logger.WithError(err).Error("failed to promote claimed admin")
		} else if promoted {
			resp.IsAdmin = true
			resp.ClaimSynced = true
			if err := h.auditor.Record(r.Context(), audit.Event{
				Type:       audit.EventTypePromotion,
				UserID:     &authCtx.UserID,
				Email:      authCtx.Email,
				ExternalID: authCtx.ExternalID,
				Detail:     "claim",
			}); err != nil {
				h.logger.WithError(err).Warn("failed to record promotion audit event")
			}
		}
	}

	httputil.WriteSuccess(w, resp)
}
