package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/userdesk/internal/shared"
	"github.com/odyssey-erp/userdesk/internal/userapi"
	"github.com/odyssey-erp/userdesk/internal/view"
)

const pageTitle = "User Management Dashboard"

// redirectedKey marks a session whose next GET / follows an intent's
// redirect and renders the state that intent produced.
const redirectedKey = "dashboard_redirected"

// Handler serves the dashboard pages and turns form posts into controller intents.
type Handler struct {
	logger    *slog.Logger
	api       UsersAPI
	store     *Store
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, api UsersAPI, store *Store, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, store: store, templates: templates, csrf: csrf}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showDashboard)
	r.Post("/search", h.search)
	r.Post("/search/clear", h.clearSearch)
	r.Post("/retry", h.retry)
	r.Route("/users", func(r chi.Router) {
		r.Get("/new", h.newUser)
		r.Post("/", h.createUser)
		r.Post("/form/cancel", h.cancelForm)
		r.Get("/{id}/edit", h.editUser)
		r.Post("/{id}", h.updateUser)
		r.Get("/{id}/delete", h.confirmDelete)
		r.Post("/{id}/delete", h.deleteUser)
		r.Get("/{id}/deactivate", h.confirmDeactivate)
		r.Post("/{id}/deactivate", h.deactivateUser)
	})
}

// controller restores the session's controller. found is false when the
// session has no dashboard state yet.
func (h *Handler) controller(ctx context.Context, sess *shared.Session) (*Controller, bool, error) {
	st, found, err := h.store.Load(ctx, sess.ID)
	if err != nil {
		return nil, false, err
	}
	return Restore(h.api, st, WithSequencer(h.store.Sequencer(sess.ID)), WithLogger(h.logger)), found, nil
}

func (h *Handler) mount(ctx context.Context, ctrl *Controller) {
	if err := ctrl.Mount(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		h.logger.Warn("dashboard mount failed", slog.Any("error", err))
	}
}

func (h *Handler) persist(ctx context.Context, sess *shared.Session, ctrl *Controller) {
	err := h.store.Save(ctx, sess.ID, ctrl.State())
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleState):
		h.logger.Debug("dashboard state superseded", slog.String("session", sess.ID))
	default:
		h.logger.Error("save dashboard state", slog.Any("error", err))
	}
}

// open loads the session and its controller, writing an error response on failure.
func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*shared.Session, *Controller, bool, bool) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.logger.Error("dashboard request rejected", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, nil, false, false
	}
	ctrl, found, err := h.controller(r.Context(), sess)
	if err != nil {
		h.logger.Error("load dashboard state", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, nil, false, false
	}
	return sess, ctrl, found, true
}

// begin is open for intents: a session without state is mounted first so the
// intent acts on loaded data.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request) (*shared.Session, *Controller, bool) {
	sess, ctrl, found, ok := h.open(w, r)
	if !ok {
		return nil, nil, false
	}
	if !found {
		h.mount(r.Context(), ctrl)
	}
	return sess, ctrl, true
}

// showDashboard mounts on every page load. Only the GET that follows an
// intent's redirect renders the stored state, so search results, errors and
// drafts produced by that intent are shown once.
func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ctrl, found, ok := h.open(w, r)
	if !ok {
		return
	}
	redirected := sess.Get(redirectedKey) != ""
	if redirected {
		sess.Delete(redirectedKey)
	}
	if !found || !redirected {
		h.mount(r.Context(), ctrl)
	}
	h.persist(r.Context(), sess, ctrl)
	h.renderDashboard(w, r, NewPage(ctrl.State(), false), http.StatusOK)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := ctrl.Search(r.Context(), r.PostFormValue("q")); err != nil && !errors.Is(err, ErrStaleResponse) {
		h.logger.Warn("search users", slog.Any("error", err))
	}
	h.persist(r.Context(), sess, ctrl)
	h.redirectHome(w, r)
}

func (h *Handler) clearSearch(w http.ResponseWriter, r *http.Request) {
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := ctrl.ClearSearch(r.Context()); err != nil && !errors.Is(err, ErrStaleResponse) {
		h.logger.Warn("clear search", slog.Any("error", err))
	}
	h.persist(r.Context(), sess, ctrl)
	h.redirectHome(w, r)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := ctrl.Retry(r.Context()); err != nil && !errors.Is(err, ErrStaleResponse) {
		h.logger.Warn("retry load", slog.Any("error", err))
	}
	h.persist(r.Context(), sess, ctrl)
	h.redirectHome(w, r)
}

func (h *Handler) newUser(w http.ResponseWriter, r *http.Request) {
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctrl.OpenCreate()
	h.persist(r.Context(), sess, ctrl)
	h.redirectHome(w, r)
}

func (h *Handler) editUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	user, err := h.lookup(r.Context(), ctrl, id)
	if err != nil {
		h.logger.Warn("open edit form", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "User not found")
		return
	}
	ctrl.OpenEdit(user)
	h.persist(r.Context(), sess, ctrl)
	h.redirectHome(w, r)
}

func (h *Handler) cancelForm(w http.ResponseWriter, r *http.Request) {
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctrl.CancelForm()
	h.persist(r.Context(), sess, ctrl)
	h.redirectHome(w, r)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	h.submitForm(w, r, 0)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	h.submitForm(w, r, id)
}

// submitForm handles both create (id == 0) and update posts.
func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := h.ensureForm(r.Context(), ctrl, id); err != nil {
		h.logger.Warn("reopen form", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "User not found")
		return
	}
	form, err := ctrl.Form()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		return
	}
	form.Bind(draftFromRequest(r))

	unlock, err := h.store.LockSubmit(r.Context(), sess.ID)
	if err != nil {
		st := ctrl.State()
		if st.Form != nil {
			st.Form.Draft = form.Draft()
			st.Form.Error = MsgSubmitInFlight
		}
		if !errors.Is(err, ErrSubmitInFlight) {
			h.logger.Error("lock form submit", slog.Any("error", err))
		}
		h.renderDashboard(w, r, NewPage(st, true), http.StatusConflict)
		return
	}
	_, err = ctrl.SubmitForm(r.Context(), form)
	unlock()
	h.persist(r.Context(), sess, ctrl)

	switch {
	case err == nil:
		message := "User created"
		if id != 0 {
			message = "User updated"
		}
		h.redirectWithFlash(w, r, "success", message)
	case errors.Is(err, ErrInvalidDraft):
		h.renderDashboard(w, r, NewPage(ctrl.State(), false), http.StatusUnprocessableEntity)
	case errors.Is(err, userapi.ErrConflict):
		h.renderDashboard(w, r, NewPage(ctrl.State(), false), http.StatusConflict)
	case errors.Is(err, userapi.ErrValidation), errors.Is(err, userapi.ErrNotFound):
		h.logger.Warn("save user rejected", slog.Any("error", err))
		h.renderDashboard(w, r, NewPage(ctrl.State(), false), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("save user", slog.Any("error", err))
		h.renderDashboard(w, r, NewPage(ctrl.State(), false), http.StatusBadGateway)
	}
}

// ensureForm makes sure the open form matches the posted target, reopening
// it when the session state no longer carries it.
func (h *Handler) ensureForm(ctx context.Context, ctrl *Controller, id int64) error {
	st := ctrl.State()
	if st.Form != nil {
		if id == 0 && st.Form.Target == nil {
			return nil
		}
		if id != 0 && st.Form.Target != nil && st.Form.Target.ID == id {
			return nil
		}
	}
	if id == 0 {
		ctrl.OpenCreate()
		return nil
	}
	user, err := h.lookup(ctx, ctrl, id)
	if err != nil {
		return err
	}
	ctrl.OpenEdit(user)
	return nil
}

// lookup finds the user among listed rows, falling back to the service.
func (h *Handler) lookup(ctx context.Context, ctrl *Controller, id int64) (userapi.User, error) {
	if user, ok := ctrl.State().FindUser(id); ok {
		return user, nil
	}
	return h.api.GetUser(ctx, id)
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	h.showConfirm(w, r, "delete", PromptDelete)
}

func (h *Handler) confirmDeactivate(w http.ResponseWriter, r *http.Request) {
	h.showConfirm(w, r, "deactivate", PromptDeactivate)
}

func (h *Handler) showConfirm(w http.ResponseWriter, r *http.Request, verb, prompt string) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	_, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	user, err := h.lookup(r.Context(), ctrl, id)
	if err != nil {
		h.logger.Warn("confirm "+verb, slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "User not found")
		return
	}
	data := ConfirmPage{
		Prompt: prompt,
		Action: "/users/" + strconv.FormatInt(id, 10) + "/" + verb,
		Verb:   verb,
		User:   user,
	}
	h.render(w, r, "pages/confirm.html", data, http.StatusOK)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.confirmedAction(w, r, "User deleted", func(ctx context.Context, ctrl *Controller, id int64, confirm Confirm) error {
		return ctrl.Delete(ctx, id, confirm)
	})
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	h.confirmedAction(w, r, "User deactivated", func(ctx context.Context, ctrl *Controller, id int64, confirm Confirm) error {
		return ctrl.Deactivate(ctx, id, confirm)
	})
}

type confirmedFunc func(ctx context.Context, ctrl *Controller, id int64, confirm Confirm) error

func (h *Handler) confirmedAction(w http.ResponseWriter, r *http.Request, success string, action confirmedFunc) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, ctrl, ok := h.begin(w, r)
	if !ok {
		return
	}
	answer := r.PostFormValue("confirm") == "yes"
	err := action(r.Context(), ctrl, id, func(string) bool { return answer })
	h.persist(r.Context(), sess, ctrl)
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "success", success)
	case errors.Is(err, ErrNotConfirmed):
		h.redirectHome(w, r)
	default:
		h.logger.Warn("user action failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectHome(w, r)
	}
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, page Page, status int) {
	h.render(w, r, "pages/dashboard.html", page, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: pageTitle, CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	body, err := h.templates.Execute(template, viewData)
	if err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(redirectedKey, "1")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	h.redirectHome(w, r)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func draftFromRequest(r *http.Request) userapi.Draft {
	active := r.PostFormValue("isActive") != ""
	return userapi.Draft{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		FirstName: strings.TrimSpace(r.PostFormValue("firstName")),
		LastName:  strings.TrimSpace(r.PostFormValue("lastName")),
		IsActive:  &active,
	}
}
