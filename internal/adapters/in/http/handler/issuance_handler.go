// internal/adapters/in/http/handler/issuance_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"tokenissuer/internal/adapters/in/http/middleware"
	issuanceapp "tokenissuer/internal/application/issuance"
	"tokenissuer/internal/application/issuance/presenter"
	issuancedom "tokenissuer/internal/domain/issuance"
)

// IssuanceUsecase is what the handler needs from the issuance application service.
type IssuanceUsecase interface {
	Start(ctx context.Context, in issuancedom.RequestInput) (*issuanceapp.Outcome, error)
	Resume(ctx context.Context, in issuanceapp.ResumeInput) (*issuanceapp.Outcome, error)
	GetAttempt(ctx context.Context, id string) (issuancedom.Attempt, error)
	ListRemediation(ctx context.Context, limit int) ([]issuancedom.Attempt, error)
}

// multipart のメモリ上限（ロゴ 5MB + フォーム値）
const maxFormBytes = 6 << 20

type IssuanceHandler struct {
	uc    IssuanceUsecase
	logos issuanceapp.LogoStore
}

func NewIssuanceHandler(uc IssuanceUsecase) *IssuanceHandler {
	return &IssuanceHandler{uc: uc}
}

// SetLogoStore enables the optional multipart "logo" file.
func (h *IssuanceHandler) SetLogoStore(s issuanceapp.LogoStore) { h.logos = s }

// Routes mounts the issuance endpoints on r. The read endpoints expose payer, mint and
// reserve details of every attempt and are mounted behind operator.
func (h *IssuanceHandler) Routes(r chi.Router, operator func(http.Handler) http.Handler) {
	r.Post("/issuances", h.Create)
	r.Post("/issuances/resume", h.Resume)

	r.Group(func(r chi.Router) {
		r.Use(operator)
		r.Get("/issuances/remediation", h.ListRemediation)
		r.Get("/issuances/{id}", h.Get)
	})
}

// issuanceForm はフォーム / JSON 共通の入力。フィールド名は発行フォームに合わせる。
type issuanceForm struct {
	Network     string `json:"network"`
	TokenName   string `json:"tokenName"`
	TokenSymbol string `json:"tokenSymbol"`
	MetadataURI string `json:"metadataUri"`
	TotalSupply string `json:"totalSupply"`
	Decimals    string `json:"decimals"`
	Socials     string `json:"socials"`
	UserWallet  string `json:"userWallet"`
	LogoURL     string `json:"logoUrl"`
	ResumeToken string `json:"resumeToken"`
}

func (f issuanceForm) input() issuancedom.RequestInput {
	return issuancedom.RequestInput{
		Network:     f.Network,
		Name:        f.TokenName,
		Symbol:      f.TokenSymbol,
		MetadataURI: f.MetadataURI,
		TotalSupply: f.TotalSupply,
		Decimals:    f.Decimals,
		Socials:     f.Socials,
		Recipient:   f.UserWallet,
		LogoURL:     f.LogoURL,
	}
}

// POST /issuances
func (h *IssuanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := parseIssuanceForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, presenter.ErrorView{Error: err.Error(), Code: "bad_request"})
		return
	}

	in := form.input()
	// ロゴを置く前に検証する（無効なリクエストでオブジェクトを残さない）
	if _, err := issuancedom.NewRequest(in); err != nil {
		h.writeError(w, err)
		return
	}

	url, err := h.uploadLogo(r)
	if err != nil {
		log.Printf("[issuance_handler] WARN: logo upload failed err=%v", err)
		writeJSON(w, http.StatusBadGateway, presenter.ErrorView{Error: "logo upload failed", Code: "logo_upload_failed"})
		return
	}
	if url != "" {
		in.LogoURL = url
	}

	out, err := h.uc.Start(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status, view := presenter.PresentOutcome(out)
	writeJSON(w, status, view)
}

// POST /issuances/resume
func (h *IssuanceHandler) Resume(w http.ResponseWriter, r *http.Request) {
	form, err := parseIssuanceForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, presenter.ErrorView{Error: err.Error(), Code: "bad_request"})
		return
	}
	if strings.TrimSpace(form.ResumeToken) == "" {
		writeJSON(w, http.StatusBadRequest, presenter.ErrorView{Error: "resumeToken is required", Code: "validation", Field: "resumeToken"})
		return
	}

	out, err := h.uc.Resume(r.Context(), issuanceapp.ResumeInput{Token: form.ResumeToken, Request: form.input()})
	if err != nil {
		h.writeError(w, err)
		return
	}
	status, view := presenter.PresentOutcome(out)
	writeJSON(w, status, view)
}

// GET /issuances/{id}
func (h *IssuanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.uc.GetAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presenter.PresentAttempt(a))
}

// GET /issuances/remediation?limit=N
func (h *IssuanceHandler) ListRemediation(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	list, err := h.uc.ListRemediation(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	uid, _ := middleware.CurrentOperatorUID(r)
	log.Printf("[issuance_handler] remediation list operator=%s count=%d", uid, len(list))
	writeJSON(w, http.StatusOK, map[string]any{"attempts": presenter.PresentAttempts(list)})
}

func (h *IssuanceHandler) writeError(w http.ResponseWriter, err error) {
	status, view := presenter.PresentError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[issuance_handler] ERROR: status=%d err=%v", status, err)
	}
	writeJSON(w, status, view)
}

func (h *IssuanceHandler) uploadLogo(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	if h.logos == nil {
		return "", errors.New("logo storage is not configured")
	}
	return h.logos.UploadLogo(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
}

// parseIssuanceForm accepts application/json, multipart/form-data and urlencoded bodies.
func parseIssuanceForm(r *http.Request) (issuanceForm, error) {
	var f issuanceForm

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxFormBytes))
		if err := dec.Decode(&f); err != nil {
			return issuanceForm{}, errors.New("invalid JSON body")
		}
		return f, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return issuanceForm{}, errors.New("invalid multipart body")
		}
	default:
		if err := r.ParseForm(); err != nil {
			return issuanceForm{}, errors.New("invalid form body")
		}
	}

	f = issuanceForm{
		Network:     r.FormValue("network"),
		TokenName:   r.FormValue("tokenName"),
		TokenSymbol: r.FormValue("tokenSymbol"),
		MetadataURI: r.FormValue("metadataUri"),
		TotalSupply: r.FormValue("totalSupply"),
		Decimals:    r.FormValue("decimals"),
		Socials:     r.FormValue("socials"),
		UserWallet:  r.FormValue("userWallet"),
		LogoURL:     r.FormValue("logoUrl"),
		ResumeToken: r.FormValue("resumeToken"),
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
