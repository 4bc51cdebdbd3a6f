package auth

import (
	"crypto/subtle"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/cryptoutil"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/herr"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/identity"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/session"
	"golang.org/x/oauth2"
)

const (
	LoginPath    = "/login"
	BeginPath    = "/auth/slack"
	CallbackPath = "/auth/slack/callback"

	stateKey    = "oauth_state"
	verifierKey = "oauth_verifier"
	returnToKey = "return_to"
)

// Reasons carried in /login?error= after a failed sign-in.
const (
	reasonDenied      = "access_denied"
	reasonState       = "state_mismatch"
	reasonMissingCode = "missing_code"
	reasonExchange    = "exchange_failed"
	reasonSession     = "session_unavailable"
)

var loginMessages = map[string]string{
	reasonDenied:      "Sign-in was cancelled in Slack.",
	reasonState:       "Your sign-in attempt expired. Please try again.",
	reasonMissingCode: "Slack did not complete the sign-in. Please try again.",
	reasonExchange:    "We could not verify your Slack account. Please try again.",
	reasonSession:     "Sign-in is temporarily unavailable. Please try again shortly.",
}

//go:embed templates/login.html
var templates embed.FS

var loginTemplate = template.Must(template.ParseFS(templates, "templates/login.html"))

var errNoSession = errors.New("no session in request context")

// FlowState is where a request's session stands in the sign-in flow.
type FlowState int

const (
	Unauthenticated FlowState = iota
	PendingCallback
	Authenticated
)

func (s FlowState) String() string {
	switch s {
	case PendingCallback:
		return "pending_callback"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// StateOf derives the flow state from the request context populated by
// the session and identity steps.
func StateOf(r *http.Request) FlowState {
	if _, ok := identity.FromContext(r.Context()); ok {
		return Authenticated
	}
	if s, ok := session.FromContext(r.Context()); ok {
		if v, _ := s.Get(stateKey); v != "" {
			return PendingCallback
		}
	}
	return Unauthenticated
}

type Handler struct {
	sessions *session.Manager
	provider Provider
}

func NewHandler(sessions *session.Manager, provider Provider) *Handler {
	return &Handler{sessions: sessions, provider: provider}
}

type loginPage struct {
	Error    string
	LoginURL string
}

// HandleLoginPage renders the sign-in page, or sends signed-in users to
// the dashboard. A local ?next= path is carried into the sign-in link.
func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) *herr.Error {
	next := sanitizeReturnTo(r.URL.Query().Get("next"))
	if StateOf(r) == Authenticated {
		if next == "" {
			next = "/"
		}
		http.Redirect(w, r, next, http.StatusFound)
		return nil
	}

	page := loginPage{LoginURL: BeginPath}
	if next != "" {
		page.LoginURL = BeginPath + "?next=" + url.QueryEscape(next)
	}
	if reason := r.URL.Query().Get("error"); reason != "" {
		msg, ok := loginMessages[reason]
		if !ok {
			msg = "Sign-in failed. Please try again."
		}
		page.Error = msg
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := loginTemplate.Execute(w, page); err != nil {
		return herr.Internal(err, "rendering login page")
	}
	return nil
}

// HandleBegin starts the OAuth flow: it records state, the PKCE verifier
// and the return path in the session and redirects to the provider.
func (h *Handler) HandleBegin(w http.ResponseWriter, r *http.Request) *herr.Error {
	if StateOf(r) == Authenticated {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil
	}
	s, ok := session.FromContext(r.Context())
	if !ok {
		return herr.Internal(errNoSession, "starting login")
	}

	state, err := cryptoutil.CreateState()
	if err != nil {
		return herr.Internal(err, "creating oauth state")
	}
	verifier := oauth2.GenerateVerifier()

	s.Set(stateKey, state)
	s.Set(verifierKey, verifier)
	if next := sanitizeReturnTo(r.URL.Query().Get("next")); next != "" {
		s.Set(returnToKey, next)
	} else {
		s.Delete(returnToKey)
	}

	if err := h.sessions.Save(r.Context(), w, s); err != nil {
		slog.ErrorContext(r.Context(), "error saving session before login", "err", err)
		redirectToLogin(w, r, reasonSession)
		return nil
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state, verifier), http.StatusFound)
	return nil
}

// HandleCallback completes the OAuth flow. Every failure leaves the user
// signed out and lands on the login page with a reason.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) *herr.Error {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return herr.Internal(errNoSession, "completing login")
	}
	ctx := r.Context()
	query := r.URL.Query()

	fail := func(reason string, err error) *herr.Error {
		slog.WarnContext(ctx, "login failed",
			"provider", h.provider.Name(),
			"reason", reason,
			"flow_state", StateOf(r).String(),
			"err", err,
		)
		clearFlow(s)
		if !s.IsNew() {
			if err := h.sessions.Save(ctx, w, s); err != nil {
				slog.WarnContext(ctx, "error clearing login state", "err", err)
			}
		}
		redirectToLogin(w, r, reason)
		return nil
	}

	if providerErr := query.Get("error"); providerErr != "" {
		return fail(reasonDenied, fmt.Errorf("%w: %s", ErrProviderDenied, providerErr))
	}

	wantState, _ := s.Get(stateKey)
	gotState := query.Get("state")
	if wantState == "" || subtle.ConstantTimeCompare([]byte(wantState), []byte(gotState)) != 1 {
		return fail(reasonState, ErrStateMismatch)
	}

	code := query.Get("code")
	if code == "" {
		return fail(reasonMissingCode, fmt.Errorf("%w: missing code", ErrExchangeFailed))
	}

	verifier, _ := s.Get(verifierKey)
	id, err := h.provider.Exchange(ctx, code, verifier)
	if err != nil {
		return fail(reasonExchange, err)
	}

	returnTo, _ := s.Get(returnToKey)
	clearFlow(s)

	if err := h.sessions.Renew(ctx, s); err != nil {
		return fail(reasonSession, err)
	}
	if err := h.sessions.SetIdentity(s, *id); err != nil {
		return fail(reasonSession, err)
	}
	if err := h.sessions.Save(ctx, w, s); err != nil {
		return fail(reasonSession, err)
	}

	slog.InfoContext(ctx, "user signed in", "provider", h.provider.Name(), "user_id", id.ID, "team", id.Team)

	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
	return nil
}

// HandleLogout destroys the session and always lands on the login page.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) *herr.Error {
	s, _ := session.FromContext(r.Context())
	if err := h.sessions.Destroy(r.Context(), w, s); err != nil {
		slog.ErrorContext(r.Context(), "error destroying session", "err", fmt.Errorf("%w: %w", ErrLogout, err))
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
	return nil
}

type statusResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *identity.Public `json:"user,omitempty"`
}

// HandleStatus reports whether the caller is signed in, with a partial
// profile when they are.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) *herr.Error {
	resp := statusResponse{}
	if id, ok := identity.FromContext(r.Context()); ok {
		public := id.Public()
		resp = statusResponse{Authenticated: true, User: &public}
	}
	w.Header().Set("Cache-Control", "no-store")
	herr.JSON(w, http.StatusOK, resp)
	return nil
}

// HandleUser returns the full identity. The route is guarded, so a missing
// identity here means the guard was not applied.
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) *herr.Error {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		return herr.Unauthorized(nil, "user endpoint reached without identity")
	}
	w.Header().Set("Cache-Control", "no-store")
	herr.JSON(w, http.StatusOK, id)
	return nil
}

func clearFlow(s *session.Session) {
	s.Delete(stateKey)
	s.Delete(verifierKey)
	s.Delete(returnToKey)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, LoginPath+"?error="+url.QueryEscape(reason), http.StatusFound)
}

// sanitizeReturnTo keeps only local absolute paths outside the auth flow.
func sanitizeReturnTo(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	if u.Path == LoginPath || u.Path == "/logout" || strings.HasPrefix(u.Path, "/auth/") {
		return ""
	}
	return u.RequestURI()
}
