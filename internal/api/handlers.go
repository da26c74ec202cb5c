package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/rs/zerolog/log"
)

// compsResponse is the GET /v1/comps body.
type compsResponse struct {
	*market.Result
	Tiers *market.PriceTiers `json:"tiers,omitempty"`
}

// handleAnalyze accepts multipart "images" files and an optional "ocr_text"
// field. Without ocr_text the images go through OCR first.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	images, ocrText, err := readAnalyzeForm(r)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}

	var result *llm.ExpertAnalysisResult
	if strings.TrimSpace(ocrText) != "" {
		result, err = s.analyzer.Analyze(r.Context(), images, ocrText)
	} else {
		result, err = s.analyzer.AnalyzeImages(r.Context(), images)
	}
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Int("images", len(images)).Msg("analyze request failed")
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func readAnalyzeForm(r *http.Request) ([][]byte, string, error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		return nil, "", common.ErrEmptyInput
	}
	if len(files) > MaxImages {
		return nil, "", fmt.Errorf("%w: at most %d images", errBadRequest, MaxImages)
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, "", fmt.Errorf("%w: open %s: %v", errBadRequest, fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("%w: read %s: %v", errBadRequest, fh.Filename, err)
		}
		if len(data) > 0 {
			images = append(images, data)
		}
	}
	if len(images) == 0 {
		return nil, "", common.ErrEmptyInput
	}
	return images, r.FormValue("ocr_text"), nil
}

// handleComps returns market data and price tiers for a query.
func (s *Server) handleComps(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", fmt.Errorf("market data is not configured"))
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("missing q"))
		return
	}

	result, err := s.market.FetchSoldListings(r.Context(), query, q.Get("category"), q.Get("condition"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}

	resp := compsResponse{Result: result}
	if tiers, ok := result.Tiers(); ok {
		resp.Tiers = &tiers
	}
	writeJSON(w, http.StatusOK, resp)
}
