package model

// Contact is where a student's result notification goes. Email may be empty.
type Contact struct {
	StudentID int    `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}
