package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/xelth-com/eckplanogram/internal/detection"
	scansvc "github.com/xelth-com/eckplanogram/internal/services/compliance"
	"github.com/xelth-com/eckplanogram/internal/services/report"
	"github.com/xelth-com/eckplanogram/internal/utils"
)

const maxUploadSize = 20 << 20

type createScanRequest struct {
	ImageRef    string `json:"imageRef"`
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
	Provider    string `json:"provider"`
}

// createScan checks a shelf photo against the template. Accepts a multipart
// "image" file or a JSON body with a base64 image. A retried upload carrying
// the same Idempotency-Key returns the scan recorded by the first attempt;
// a retry that arrives while the first attempt still runs gets 409.
func (r *Router) createScan(w http.ResponseWriter, req *http.Request) {
	tenantID := identity(req).TenantID
	templateID := mux.Vars(req)["id"]

	var retryKey string
	if k := req.Header.Get("Idempotency-Key"); k != "" {
		retryKey = tenantID + ":" + templateID + ":" + k
	}
	scanID, state := r.retries.Claim(retryKey)
	switch state {
	case utils.InProgress:
		respondError(w, http.StatusConflict, "A scan with this Idempotency-Key is still running")
		return
	case utils.Done:
		scan, err := r.scans.Recorder().Get(req.Context(), tenantID, scanID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		respondJSON(w, http.StatusOK, scansvc.ScanResult{Scan: scan, Overlay: []detection.Prediction{}})
		return
	}

	scanReq, err := readScanRequest(w, req)
	if err != nil {
		r.retries.Release(retryKey)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	scanReq.TenantID = tenantID
	scanReq.TemplateID = templateID

	res, err := r.scans.RunScan(req.Context(), scanReq)
	if err != nil {
		r.retries.Release(retryKey)
		respondServiceError(w, err)
		return
	}
	r.retries.Remember(retryKey, res.Scan.ID)
	respondJSON(w, http.StatusCreated, res)
}

func readScanRequest(w http.ResponseWriter, req *http.Request) (scansvc.ScanRequest, error) {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadSize)

	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		if err := req.ParseMultipartForm(maxUploadSize); err != nil {
			return scansvc.ScanRequest{}, fmt.Errorf("invalid multipart form: %v", err)
		}
		file, header, err := req.FormFile("image")
		if err != nil {
			return scansvc.ScanRequest{}, fmt.Errorf("image file is required")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return scansvc.ScanRequest{}, fmt.Errorf("failed to read image: %v", err)
		}
		imageRef := req.FormValue("imageRef")
		if imageRef == "" {
			imageRef = header.Filename
		}
		return scansvc.ScanRequest{
			ImageRef:  imageRef,
			ImageData: data,
			MimeType:  header.Header.Get("Content-Type"),
			Provider:  req.FormValue("provider"),
		}, nil
	}

	var body createScanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return scansvc.ScanRequest{}, fmt.Errorf("invalid request payload")
	}
	encoded := body.ImageBase64
	// Accept data URLs from the browser canvas
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		if body.MimeType == "" {
			body.MimeType = strings.TrimPrefix(encoded[:i], "data:")
		}
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return scansvc.ScanRequest{}, fmt.Errorf("imageBase64 is not valid base64")
	}
	return scansvc.ScanRequest{
		ImageRef:  body.ImageRef,
		ImageData: data,
		MimeType:  body.MimeType,
		Provider:  body.Provider,
	}, nil
}

// listScans returns the template's scans, newest first
func (r *Router) listScans(w http.ResponseWriter, req *http.Request) {
	id := identity(req)
	templateID := mux.Vars(req)["id"]
	if _, err := r.planograms.GetTemplate(req.Context(), templateID, id.TenantID); err != nil {
		respondServiceError(w, err)
		return
	}

	scans, err := r.scans.Recorder().ListByTemplate(req.Context(), id.TenantID, templateID, queryInt(req, "limit"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scans)
}

// scanSummary returns score statistics of one template
func (r *Router) scanSummary(w http.ResponseWriter, req *http.Request) {
	id := identity(req)
	templateID := mux.Vars(req)["id"]
	if _, err := r.planograms.GetTemplate(req.Context(), templateID, id.TenantID); err != nil {
		respondServiceError(w, err)
		return
	}

	summary, err := r.scans.Recorder().Summary(req.Context(), id.TenantID, templateID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// scanTrend lists scans across templates. ?since= takes RFC3339, ?days= a look-back window.
func (r *Router) scanTrend(w http.ResponseWriter, req *http.Request) {
	var since time.Time
	q := req.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t.UTC()
	} else if days := queryInt(req, "days"); days > 0 {
		since = time.Now().UTC().AddDate(0, 0, -days)
	}

	trend, err := r.scans.Recorder().ListTrend(req.Context(), identity(req).TenantID, since, queryInt(req, "limit"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trend)
}

// getScan returns one scan
func (r *Router) getScan(w http.ResponseWriter, req *http.Request) {
	scan, err := r.scans.Recorder().Get(req.Context(), identity(req).TenantID, mux.Vars(req)["scanId"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scan)
}

// scanReport renders a scan as a PDF
func (r *Router) scanReport(w http.ResponseWriter, req *http.Request) {
	id := identity(req)
	scan, err := r.scans.Recorder().Get(req.Context(), id.TenantID, mux.Vars(req)["scanId"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tmpl, err := r.planograms.GetTemplate(req.Context(), scan.TemplateID, id.TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	pdfBytes, err := report.GenerateScanReportPDF(tmpl, scan, r.baseURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}
	writePDF(w, fmt.Sprintf("scan_%s.pdf", scan.ID), pdfBytes)
}

func queryInt(req *http.Request, key string) int {
	v, err := strconv.Atoi(req.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
