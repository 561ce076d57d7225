package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PNGBytes is the smallest payload content sniffing reports as image/png.
var PNGBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// AccountBuilder creates test accounts with a builder pattern
type AccountBuilder struct {
	username string
	email    string
	fullName string
	password string
	avatar   string
}

// NewAccountBuilder creates a new AccountBuilder with default values
func NewAccountBuilder() *AccountBuilder {
	suffix := uuid.New().String()[:8]
	return &AccountBuilder{
		username: "user_" + suffix,
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		fullName: "Test User",
		password: "testpassword123",
		avatar:   "https://media.test/accounts/avatar.png",
	}
}

func (b *AccountBuilder) WithUsername(username string) *AccountBuilder {
	b.username = username
	return b
}

func (b *AccountBuilder) WithEmail(email string) *AccountBuilder {
	b.email = email
	return b
}

func (b *AccountBuilder) WithFullName(fullName string) *AccountBuilder {
	b.fullName = fullName
	return b
}

func (b *AccountBuilder) WithPassword(password string) *AccountBuilder {
	b.password = password
	return b
}

// Build stores the account and returns it with the raw password
func (b *AccountBuilder) Build(t *testing.T, repo repository.AccountRepository) (*domain.Account, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	account := &domain.Account{
		Username:     b.username,
		Email:        b.email,
		FullName:     b.fullName,
		PasswordHash: string(hashedPassword),
		AvatarURL:    b.avatar,
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return account, b.password
}

// WriteTempImage writes a small PNG into dir and returns its path.
func WriteTempImage(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, uuid.NewString()+".png")
	if err := os.WriteFile(path, PNGBytes, 0o600); err != nil {
		t.Fatalf("failed to write temp image: %v", err)
	}
	return path
}

// MultipartBody encodes fields and files (field name -> content) as a
// multipart form and returns the body with its content type.
func MultipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field %s: %v", name, err)
		}
	}
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatalf("failed to create file part %s: %v", name, err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed to write file part %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// NewJSONRequest builds a request with a JSON body and optional cookies.
func NewJSONRequest(t *testing.T, method, url string, payload any, cookies ...*http.Cookie) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// Session is what a successful login hands back to a client.
type Session struct {
	AccessToken  string
	RefreshToken string
	Cookies      []*http.Cookie
}

// Login logs in through the API and fails the test unless it succeeds.
func (ts *TestServer) Login(t *testing.T, username, password string) *Session {
	t.Helper()

	req := NewJSONRequest(t, http.MethodPost, ts.APIURL("/login"), map[string]string{
		"username": username,
		"password": password,
	})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status code: %d", resp.StatusCode)
	}

	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	DecodeEnvelope(t, resp).DecodeData(t, &data)

	return &Session{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		Cookies:      resp.Cookies(),
	}
}

// Cookie returns the session cookie called name, or nil.
func (s *Session) Cookie(name string) *http.Cookie {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
