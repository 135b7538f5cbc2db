// Package directory holds the interfaces to the external collaborators this
// service consumes: the course catalog, the enrollment service and the user
// identity service. Their lifecycles live elsewhere; only lookups are needed
// here.
package directory

import (
	"context"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// CourseDirectory answers whether an identifier names a real catalog course.
type CourseDirectory interface {
	// GetCourse returns (nil, nil) when the id names no course.
	GetCourse(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentDirectory answers whether a user's enrollment in a course is
// active (wishlisted or dropped enrollments are not active).
type EnrollmentDirectory interface {
	IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

// UserDirectory resolves user ids to display identities for sender
// attribution.
type UserDirectory interface {
	// GetUser returns (nil, nil) when the id names no user.
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Directory bundles the three collaborators.
type Directory interface {
	CourseDirectory
	EnrollmentDirectory
	UserDirectory
}
