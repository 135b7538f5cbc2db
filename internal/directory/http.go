package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"context"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// HTTPDirectory talks to the platform's catalog/enrollment/identity APIs over
// HTTP. Lookups that 404 are reported as absent, not as errors.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDirectory creates a directory client against the given base URL.
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *HTTPDirectory) get(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("directory error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// GetCourse looks up a course by id.
func (d *HTTPDirectory) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	found, err := d.get(ctx, "/courses/"+url.PathEscape(id), &course)
	if err != nil || !found {
		return nil, err
	}
	return &course, nil
}

// IsActivelyEnrolled checks the user's enrollment status for a course.
func (d *HTTPDirectory) IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	var status struct {
		Active bool `json:"active"`
	}
	found, err := d.get(ctx,
		"/enrollments/"+url.PathEscape(userID)+"/"+url.PathEscape(courseID), &status)
	if err != nil {
		return false, err
	}
	return found && status.Active, nil
}

// GetUser looks up a user by id.
func (d *HTTPDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	found, err := d.get(ctx, "/users/"+url.PathEscape(id), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}
