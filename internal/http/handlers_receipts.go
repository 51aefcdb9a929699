package http

import (
	"io"
	"net/http"
)

// maxReceiptSize caps uploaded receipt images at 10 MB.
const maxReceiptSize = 10 << 20

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "receipt scanning is not configured"})
		return
	}

	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		s.writeError(r.Context(), w, errMalformedBody)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(r.Context(), w, errMalformedBody)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxReceiptSize))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	scan, err := s.scanner.Scan(r.Context(), image, mimeType)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"amount":        scan.Amount.StringFixed(2),
		"date":          scan.Date.Format("2006-01-02"),
		"description":   scan.Description,
		"merchant_name": scan.MerchantName,
		"category":      scan.Category,
	})
}
