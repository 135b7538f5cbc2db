package rooms

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/directory"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/metrics"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// resolutionKind tags which lookup branch matched an identifier.
type resolutionKind int

const (
	byRoomID resolutionKind = iota
	byCourseID
	unresolved
)

type resolution struct {
	kind resolutionKind
	room *models.Room // nil iff kind == unresolved
}

// Resolver maps a caller-supplied identifier, which may denote a room or a
// course, onto exactly one canonical room. Absence is never an error: an
// identifier that resolves to nothing provisions a room on the spot, with
// the storage layer's upsert guaranteeing that concurrent first-time
// resolutions converge on a single room.
type Resolver struct {
	store   store.RoomStore
	courses directory.CourseDirectory
	logger  zerolog.Logger
}

// NewResolver creates a resolver over the given store and course catalog.
func NewResolver(st store.RoomStore, courses directory.CourseDirectory, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:   st,
		courses: courses,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the canonical room for the identifier, creating one if
// none exists. The requesting user seeds the participant list on creation.
func (r *Resolver) Resolve(ctx context.Context, identifier, userID string) (*models.Room, error) {
	res, err := r.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	switch res.kind {
	case byRoomID:
		metrics.RoomsResolved.WithLabelValues("room_id").Inc()
		return res.room, nil
	case byCourseID:
		metrics.RoomsResolved.WithLabelValues("course_id").Inc()
		return res.room, nil
	}
	metrics.RoomsResolved.WithLabelValues("created").Inc()
	return r.provision(ctx, identifier, userID)
}

// lookup runs the ordered resolution pipeline: room id first, then course
// reference. Each branch is explicit so its precondition is testable on its
// own.
func (r *Resolver) lookup(ctx context.Context, identifier string) (resolution, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		room, err := r.store.GetRoomByID(ctx, id)
		if err != nil {
			return resolution{}, fmt.Errorf("lookup by room id: %w", err)
		}
		if room != nil {
			return resolution{kind: byRoomID, room: room}, nil
		}
	}

	room, err := r.store.GetRoomByCourse(ctx, identifier)
	if err != nil {
		return resolution{}, fmt.Errorf("lookup by course: %w", err)
	}
	if room != nil {
		return resolution{kind: byCourseID, room: room}, nil
	}

	return resolution{kind: unresolved}, nil
}

// provision creates the room for an unresolved identifier. When the course
// catalog recognizes the identifier the room is course-scoped and named from
// the course title; otherwise it is ad hoc with a generic name. Either way
// the identifier becomes the room's course reference, so repeated resolution
// of the same identifier converges instead of spawning duplicates.
func (r *Resolver) provision(ctx context.Context, identifier, userID string) (*models.Room, error) {
	course, err := r.courses.GetCourse(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("course lookup: %w", err)
	}

	name := "Open Discussion"
	description := ""
	courseScoped := false
	if course != nil {
		name = course.Title
		description = "Discussion room for " + course.Title
		courseScoped = true
	}

	room, err := r.store.CreateRoomIfAbsent(ctx, identifier, courseScoped, name, description, userID)
	if err != nil {
		return nil, fmt.Errorf("provision room: %w", err)
	}

	scope := "adhoc"
	if courseScoped {
		scope = "course"
	}
	metrics.RoomsCreated.WithLabelValues(scope).Inc()

	r.logger.Info().
		Str("room_id", room.ID.String()).
		Str("identifier", identifier).
		Bool("course_scoped", courseScoped).
		Msg("room provisioned")
	return room, nil
}
