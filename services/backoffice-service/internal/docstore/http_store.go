package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore talks to a simple object-store gateway: PUT uploads bytes
// and returns the public URL, DELETE removes them.
type HTTPStore struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPStore(baseURL string, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPStore) ProviderID() string {
	return "docstore-http"
}

func (s *HTTPStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	if s.baseURL == "" {
		return "", ErrUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/objects/"+url.PathEscape(key), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New("object store returned non-2xx")
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		// Stores without a response body are addressed by key.
		return s.baseURL + "/objects/" + url.PathEscape(key), nil
	}
	return out.URL, nil
}

func (s *HTTPStore) Delete(ctx context.Context, objectURL string) error {
	if s.baseURL == "" {
		return ErrUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, objectURL, nil)
	if err != nil {
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// A missing object is already deleted.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("object store returned non-2xx")
	}
	return nil
}
