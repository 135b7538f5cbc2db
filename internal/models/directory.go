package models

// User is the identity collaborator's view of a user, used for message
// sender attribution. Authentication itself lives outside this service.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Course is the catalog collaborator's view of a course.
type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
