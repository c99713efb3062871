package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	diaryerrs "github.com/dailyrhapsody/diary/internal/errors"
	"github.com/dailyrhapsody/diary/internal/serverutil"
	"github.com/dailyrhapsody/diary/internal/uploads"
)

const maxUploadMemory = 32 << 20

type uploadResponse struct {
	URLs []string `json:"urls"`
}

// Accepts any number of "files" parts, or a single "file". Parts that are not
// an allowed image type are skipped.
func (s Server) postUpload(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return diaryerrs.E("invalid form", http.StatusBadRequest)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		return diaryerrs.E("No files", http.StatusBadRequest)
	}

	resp := uploadResponse{URLs: []string{}}
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if !uploads.Allowed(contentType) {
			slog.InfoContext(r.Context(), "skipping upload part", "filename", fh.Filename, "content_type", contentType)
			continue
		}

		url, err := s.store(r, fh, contentType)
		if err != nil {
			return diaryerrs.E(err, http.StatusInternalServerError)
		}
		resp.URLs = append(resp.URLs, url)
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) store(r *http.Request, fh *multipart.FileHeader, contentType string) (string, error) {
	name, err := uploads.ObjectName(contentType, s.now())
	if err != nil {
		return "", err
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("error opening upload part: %w", err)
	}
	defer f.Close()

	url, err := s.images.Put(r.Context(), name, contentType, f, fh.Size)
	if err != nil {
		slog.ErrorContext(r.Context(), "error storing upload", "err", err)
		return "", errors.New("upload to storage failed")
	}

	return url, nil
}
