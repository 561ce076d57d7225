package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dom/account-backend/internal/domain"
	"github.com/pkg/errors"
)

const multipartMemory = 1 << 20

// parseMultipart bounds the body to maxBytes and parses it. Parts that do not
// fit in memory are spooled to disk by net/http and removed by the caller
// through r.MultipartForm.RemoveAll.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ValidationError("Uploaded file is too large").WithCause(err)
		}
		return domain.ValidationError("Invalid multipart form").WithCause(err)
	}
	return nil
}

// uploadSet tracks temporary files written for one request.
type uploadSet struct {
	dir   string
	paths []string
}

// save copies the file under field into dir and returns its path, or "" when
// the request carries no such file.
func (u *uploadSet) save(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", domain.ValidationError("Invalid " + field + " upload").WithCause(err)
	}
	defer file.Close()

	tmp, err := os.CreateTemp(u.dir, "upload-*"+cleanExt(header.Filename))
	if err != nil {
		return "", domain.InternalError("Something went wrong while saving the upload").
			WithCause(errors.Wrap(err, "create temp file"))
	}
	u.paths = append(u.paths, tmp.Name())

	_, err = io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", domain.InternalError("Something went wrong while saving the upload").
			WithCause(errors.Wrap(err, "write temp file"))
	}
	return tmp.Name(), nil
}

// cleanup removes whatever the media store did not already consume.
func (u *uploadSet) cleanup() {
	for _, path := range u.paths {
		_ = os.Remove(path)
	}
}

func cleanExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
