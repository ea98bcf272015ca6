package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPasswordRequired is returned for encrypted PDFs opened without a password.
var ErrPasswordRequired = errors.New("pdf: file is encrypted and no password was given")

// PasswordCredentials contains the passwords for a PDF file.
type PasswordCredentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Empty reports whether no password is set.
func (c *PasswordCredentials) Empty() bool {
	return c == nil || (c.UserPassword == "" && c.OwnerPassword == "")
}

// PasswordHandler resolves pdfcpu configurations for possibly encrypted files.
type PasswordHandler struct {
	defaultCredentials *PasswordCredentials
}

// NewPasswordHandler creates a new password handler.
func NewPasswordHandler() *PasswordHandler {
	return &PasswordHandler{}
}

// SetDefaultCredentials sets credentials used when a call passes none.
func (h *PasswordHandler) SetDefaultCredentials(creds *PasswordCredentials) {
	h.defaultCredentials = creds
}

// IsEncrypted checks if a PDF file is encrypted/password-protected.
func (h *PasswordHandler) IsEncrypted(filename string) (bool, error) {
	_, err := api.PageCountFile(filename)
	if err == nil {
		return false, nil
	}
	if isPasswordError(err, filename) {
		return true, nil
	}
	return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
}

// Configuration returns the pdfcpu configuration for filename. Encrypted
// files without any usable credentials fail with ErrPasswordRequired.
func (h *PasswordHandler) Configuration(filename string, creds *PasswordCredentials) (*model.Configuration, error) {
	if creds.Empty() {
		creds = h.defaultCredentials
	}
	conf := model.NewDefaultConfiguration()
	if !creds.Empty() {
		conf.UserPW = creds.UserPassword
		conf.OwnerPW = creds.OwnerPassword
		return conf, nil
	}

	encrypted, err := h.IsEncrypted(filename)
	if err != nil {
		return nil, err
	}
	if encrypted {
		return nil, fmt.Errorf("%w: %s", ErrPasswordRequired, filename)
	}
	return conf, nil
}

// IsPasswordError reports whether err comes from a missing or wrong PDF
// password. File system errors never count, and paths carried by the error
// are ignored when matching pdfcpu's messages.
func IsPasswordError(err error) bool {
	return isPasswordError(err)
}

func isPasswordError(err error, paths ...string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPasswordRequired) {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return false
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		paths = append(paths, pathErr.Path)
	}
	msg := err.Error()
	for _, p := range paths {
		if p != "" {
			msg = strings.ReplaceAll(msg, p, "")
		}
	}

	msg = strings.ToLower(msg)
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
