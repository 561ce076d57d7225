package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// pngHeader is enough for the server's content sniffing to see an image.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1/users",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type Account struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginData struct {
	User *Account `json:"user"`
	Tokens
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

// APIError is a failure envelope returned by the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Register creates an account with a generated avatar
func (c *APIClient) Register(username, email, fullName, password string, withCover bool) (*Account, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range map[string]string{
		"username": username,
		"email":    email,
		"fullName": fullName,
		"password": password,
	} {
		writer.WriteField(name, value)
	}

	files := []string{"avatar"}
	if withCover {
		files = append(files, "coverImage")
	}
	for _, field := range files {
		part, err := writer.CreateFormFile(field, field+".png")
		if err != nil {
			return nil, fmt.Errorf("failed to build %s part: %w", field, err)
		}
		part.Write(pngHeader)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/register", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var account Account
	if err := c.do(req, http.StatusCreated, &account); err != nil {
		return nil, fmt.Errorf("register failed: %w", err)
	}
	return &account, nil
}

// Login authenticates by username
func (c *APIClient) Login(username, password string) (*LoginData, error) {
	var data LoginData
	err := c.postJSON("/login", map[string]string{
		"username": username,
		"password": password,
	}, "", &data)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &data, nil
}

// Refresh exchanges a refresh token for a new pair
func (c *APIClient) Refresh(refreshToken string) (*Tokens, error) {
	var tokens Tokens
	err := c.postJSON("/refresh-token", map[string]string{"refreshToken": refreshToken}, "", &tokens)
	if err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}
	return &tokens, nil
}

// Me returns the account behind an access token
func (c *APIClient) Me(accessToken string) (*Account, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var account Account
	if err := c.do(req, http.StatusOK, &account); err != nil {
		return nil, fmt.Errorf("me failed: %w", err)
	}
	return &account, nil
}

// Logout ends the session behind an access token
func (c *APIClient) Logout(accessToken string) error {
	if err := c.postJSON("/logout", struct{}{}, accessToken, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

func (c *APIClient) postJSON(path string, payload any, accessToken string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.do(req, http.StatusOK, out)
}

func (c *APIClient) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != wantStatus {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
