package inbound

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-social/core"
)

const defaultFallbackReturnPath = "/"

// Handler wires the service operations onto an HTTP router.
type Handler struct {
	service core.SocialService
	logger  core.Logger

	// FallbackReturnPath receives the browser after a callback that failed
	// before a return path could be recovered from state.
	FallbackReturnPath string
}

type HandlerOption func(*Handler)

func WithHandlerLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithFallbackReturnPath(path string) HandlerOption {
	return func(h *Handler) {
		if strings.TrimSpace(path) != "" {
			h.FallbackReturnPath = path
		}
	}
}

func NewHandler(service core.SocialService, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:            service,
		FallbackReturnPath: defaultFallbackReturnPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes returns a router with every handler mounted. Embedding
// applications mount it under their own prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/connect", h.HandleConnect)
	r.Get("/callback", h.HandleCallback)
	r.Post("/connect/direct", h.HandleConnectDirect)
	r.Get("/accounts", h.HandleListAccounts)
	r.Get("/accounts/{id}", h.HandleGetAccount)
	r.Delete("/accounts/{id}", h.HandleDisconnect)
	r.Post("/publish", h.HandlePublish)
	r.Get("/activity", h.HandleListActivity)
	return r
}

type connectPayload struct {
	ProviderID  string `json:"provider_id"`
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	ReturnPath  string `json:"return_path,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type connectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload connectPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	resp, err := h.service.Connect(r.Context(), core.ConnectRequest{
		ProviderID:  payload.ProviderID,
		UserID:      payload.UserID,
		WorkspaceID: payload.WorkspaceID,
		ReturnPath:  payload.ReturnPath,
		RedirectURI: payload.RedirectURI,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connectResponse{
		AuthorizationURL: resp.URL,
		State:            resp.State,
	})
}

// HandleCallback completes the authorization-code exchange and sends the
// browser back where the connect flow started. Failures still redirect,
// with the error code in the query string, so the user never lands on a
// bare JSON error page.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}
	query := r.URL.Query()
	if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
		h.redirect(w, r, h.FallbackReturnPath, url.Values{"error": {providerErr}})
		return
	}
	completion, err := h.service.CompleteCallback(r.Context(), core.CompleteAuthRequest{
		ProviderID: strings.TrimSpace(query.Get("provider")),
		Code:       strings.TrimSpace(query.Get("code")),
		State:      strings.TrimSpace(query.Get("state")),
	})
	if err != nil {
		_, textCode := statusFromError(err)
		if h.logger != nil {
			h.logger.Error("oauth callback failed", "error", err)
		}
		target := returnPathFromError(err)
		if target == "" {
			target = h.FallbackReturnPath
		}
		h.redirect(w, r, target, url.Values{"error": {textCode}})
		return
	}
	target := completion.ReturnPath
	if strings.TrimSpace(target) == "" {
		target = h.FallbackReturnPath
	}
	h.redirect(w, r, target, url.Values{
		"connected": {completion.Account.ProviderID},
		"account":   {completion.Account.ID},
	})
}

type connectDirectPayload struct {
	ProviderID  string `json:"provider_id"`
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Identifier  string `json:"identifier"`
	AppPassword string `json:"app_password"`
}

func (h *Handler) HandleConnectDirect(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload connectDirectPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	completion, err := h.service.ConnectDirect(r.Context(), core.DirectAuthRequest{
		ProviderID:  payload.ProviderID,
		UserID:      payload.UserID,
		WorkspaceID: payload.WorkspaceID,
		Identifier:  payload.Identifier,
		AppPassword: payload.AppPassword,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"account": accountToResponse(completion.Account),
	})
}

func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	workspaceID := strings.TrimSpace(r.URL.Query().Get("workspace_id"))
	accountID := strings.TrimSpace(chi.URLParam(r, "id"))
	if workspaceID == "" {
		h.writeError(w, inboundBadInput("inbound: workspace_id is required", nil))
		return
	}
	if err := h.service.Disconnect(r.Context(), workspaceID, accountID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	workspaceID := strings.TrimSpace(r.URL.Query().Get("workspace_id"))
	accountID := strings.TrimSpace(chi.URLParam(r, "id"))
	if workspaceID == "" {
		h.writeError(w, inboundBadInput("inbound: workspace_id is required", nil))
		return
	}
	account, err := h.service.GetAccount(r.Context(), workspaceID, accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	workspaceID := strings.TrimSpace(r.URL.Query().Get("workspace_id"))
	if workspaceID == "" {
		h.writeError(w, inboundBadInput("inbound: workspace_id is required", nil))
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), workspaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, accountToResponse(account))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"accounts": items})
}

type publishPayload struct {
	WorkspaceID      string   `json:"workspace_id"`
	ActorID          string   `json:"actor_id"`
	Content          string   `json:"content"`
	LinkURL          string   `json:"link_url,omitempty"`
	MediaURL         string   `json:"media_url,omitempty"`
	MediaType        string   `json:"media_type,omitempty"`
	TargetAccountIDs []string `json:"target_account_ids"`
}

// HandlePublish returns 200 with the full outcome even when every target
// failed. A failed fan-out is a completed request; transport-level status
// codes are reserved for requests that never reached the dispatcher.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload publishPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	outcome, err := h.service.Publish(r.Context(), core.PublishRequest{
		WorkspaceID:      payload.WorkspaceID,
		ActorID:          payload.ActorID,
		Content:          payload.Content,
		LinkURL:          payload.LinkURL,
		MediaURL:         payload.MediaURL,
		MediaType:        payload.MediaType,
		TargetAccountIDs: payload.TargetAccountIDs,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

func (h *Handler) HandleListActivity(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	query := r.URL.Query()
	filter := core.PublishActivityFilter{
		WorkspaceID: strings.TrimSpace(query.Get("workspace_id")),
		ActorID:     strings.TrimSpace(query.Get("actor_id")),
		Status:      core.PublishStatus(strings.TrimSpace(query.Get("status"))),
	}
	if filter.WorkspaceID == "" {
		h.writeError(w, inboundBadInput("inbound: workspace_id is required", nil))
		return
	}
	var err error
	if filter.Page, err = intParam(query.Get("page")); err != nil {
		h.writeError(w, inboundBadInput("inbound: page must be an integer", nil))
		return
	}
	if filter.PerPage, err = intParam(query.Get("per_page")); err != nil {
		h.writeError(w, inboundBadInput("inbound: per_page must be an integer", nil))
		return
	}
	if from, parseErr := timeParam(query.Get("from")); parseErr != nil {
		h.writeError(w, inboundBadInput("inbound: from must be RFC 3339", nil))
		return
	} else {
		filter.From = from
	}
	if to, parseErr := timeParam(query.Get("to")); parseErr != nil {
		h.writeError(w, inboundBadInput("inbound: to must be RFC 3339", nil))
		return
	} else {
		filter.To = to
	}
	page, err := h.service.ListPublishActivity(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, activityPageToResponse(page))
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		err := inboundInternal("inbound: service is not configured", nil)
		writeErrorJSON(w, err)
		return false
	}
	return true
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target string, params url.Values) {
	if strings.TrimSpace(target) == "" {
		target = defaultFallbackReturnPath
	}
	if len(params) > 0 {
		separator := "?"
		if strings.Contains(target, "?") {
			separator = "&"
		}
		target = target + separator + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if h != nil && h.logger != nil {
		h.logger.Error("request failed", "error", err)
	}
	writeErrorJSON(w, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && h != nil && h.logger != nil {
		h.logger.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeErrorJSON(w http.ResponseWriter, err error) {
	status, textCode := statusFromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Message:  err.Error(),
		TextCode: textCode,
	}})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return inboundBadInput("inbound: decode request body", map[string]any{
			"decode_error": err.Error(),
		})
	}
	return nil
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func timeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}

type accountResponse struct {
	ID                 string `json:"id"`
	WorkspaceID        string `json:"workspace_id"`
	ProviderID         string `json:"provider_id"`
	ExternalAccountID  string `json:"external_account_id"`
	DisplayName        string `json:"display_name,omitempty"`
	Handle             string `json:"handle,omitempty"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	AccountType        string `json:"account_type,omitempty"`
	AutopublishCapable bool   `json:"autopublish_capable"`
	Status             string `json:"status"`
	LastError          string `json:"last_error,omitempty"`
	LastConnectedAt    string `json:"last_connected_at,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

func accountToResponse(account core.Account) accountResponse {
	resp := accountResponse{
		ID:                 account.ID,
		WorkspaceID:        account.WorkspaceID,
		ProviderID:         account.ProviderID,
		ExternalAccountID:  account.ExternalAccountID,
		DisplayName:        account.DisplayName,
		Handle:             account.Handle,
		AvatarURL:          account.AvatarURL,
		AccountType:        account.AccountType,
		AutopublishCapable: account.AutopublishCapable,
		Status:             string(account.Status),
		LastError:          account.LastError,
	}
	if !account.LastConnectedAt.IsZero() {
		resp.LastConnectedAt = account.LastConnectedAt.UTC().Format(time.RFC3339)
	}
	if !account.CreatedAt.IsZero() {
		resp.CreatedAt = account.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !account.UpdatedAt.IsZero() {
		resp.UpdatedAt = account.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type publishResultResponse struct {
	AccountID    string `json:"account_id"`
	ProviderID   string `json:"provider_id"`
	Success      bool   `json:"success"`
	PostID       string `json:"post_id,omitempty"`
	PostURL      string `json:"post_url,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type publishSummaryResponse struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type publishOutcomeResponse struct {
	Status  string                  `json:"status"`
	Results []publishResultResponse `json:"results"`
	Summary publishSummaryResponse  `json:"summary"`
}

func outcomeToResponse(outcome core.PublishOutcome) publishOutcomeResponse {
	results := make([]publishResultResponse, 0, len(outcome.Results))
	for _, result := range outcome.Results {
		results = append(results, publishResultResponse{
			AccountID:    result.AccountID,
			ProviderID:   result.ProviderID,
			Success:      result.Success,
			PostID:       result.PostID,
			PostURL:      result.PostURL,
			ErrorCode:    result.ErrorCode,
			ErrorMessage: result.ErrorMessage,
		})
	}
	return publishOutcomeResponse{
		Status:  string(outcome.Status),
		Results: results,
		Summary: publishSummaryResponse{
			Total:     outcome.Summary.Total,
			Succeeded: outcome.Summary.Succeeded,
			Failed:    outcome.Summary.Failed,
		},
	}
}

type providerOutcomeResponse struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type activityEntryResponse struct {
	ID               string                             `json:"id"`
	WorkspaceID      string                             `json:"workspace_id"`
	ActorID          string                             `json:"actor_id,omitempty"`
	Status           string                             `json:"status"`
	Total            int                                `json:"total"`
	Succeeded        int                                `json:"succeeded"`
	Failed           int                                `json:"failed"`
	Providers        []string                           `json:"providers,omitempty"`
	ProviderOutcomes map[string]providerOutcomeResponse `json:"provider_outcomes,omitempty"`
	Metadata         map[string]any                     `json:"metadata,omitempty"`
	CreatedAt        string                             `json:"created_at,omitempty"`
}

type activityPageResponse struct {
	Items   []activityEntryResponse `json:"items"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
	Total   int                     `json:"total"`
	HasNext bool                    `json:"has_next"`
}

func activityPageToResponse(page core.PublishActivityPage) activityPageResponse {
	items := make([]activityEntryResponse, 0, len(page.Items))
	for _, entry := range page.Items {
		item := activityEntryResponse{
			ID:          entry.ID,
			WorkspaceID: entry.WorkspaceID,
			ActorID:     entry.ActorID,
			Status:      string(entry.Status),
			Total:       entry.Total,
			Succeeded:   entry.Succeeded,
			Failed:      entry.Failed,
			Providers:   entry.Providers,
			Metadata:    entry.Metadata,
		}
		if len(entry.ProviderOutcomes) > 0 {
			item.ProviderOutcomes = make(map[string]providerOutcomeResponse, len(entry.ProviderOutcomes))
			for id, outcome := range entry.ProviderOutcomes {
				item.ProviderOutcomes[id] = providerOutcomeResponse{
					Succeeded: outcome.Succeeded,
					Failed:    outcome.Failed,
				}
			}
		}
		if !entry.CreatedAt.IsZero() {
			item.CreatedAt = entry.CreatedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return activityPageResponse{
		Items:   items,
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
		HasNext: page.HasNext,
	}
}
