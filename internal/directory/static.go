package directory

import (
	"context"
	"sync"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// StaticDirectory is an in-memory Directory used in development mode and in
// tests. Unknown users still resolve so that a bare user id never blocks a
// message from being attributed.
type StaticDirectory struct {
	mu          sync.RWMutex
	courses     map[string]models.Course
	users       map[string]models.User
	enrollments map[string]bool // userID|courseID -> active
}

// NewStaticDirectory creates an empty static directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		courses:     make(map[string]models.Course),
		users:       make(map[string]models.User),
		enrollments: make(map[string]bool),
	}
}

// AddCourse registers a course.
func (d *StaticDirectory) AddCourse(id, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.courses[id] = models.Course{ID: id, Title: title}
}

// AddUser registers a user identity.
func (d *StaticDirectory) AddUser(id, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = models.User{ID: id, DisplayName: displayName}
}

// SetEnrollment sets a user's enrollment state for a course.
func (d *StaticDirectory) SetEnrollment(userID, courseID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enrollments[userID+"|"+courseID] = active
}

// GetCourse looks up a course by id.
func (d *StaticDirectory) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.courses[id]; ok {
		return &c, nil
	}
	return nil, nil
}

// IsActivelyEnrolled checks the user's enrollment status for a course.
func (d *StaticDirectory) IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enrollments[userID+"|"+courseID], nil
}

// GetUser looks up a user by id, falling back to the id as display name.
func (d *StaticDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		return &u, nil
	}
	return &models.User{ID: id, DisplayName: id}, nil
}
