package models

// StudentProfile is a roster member as seen by the aggregation layer.
type StudentProfile struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"full_name" json:"name"`
	ClassID   string `db:"class_id" json:"class_id"`
	ClassName string `db:"class_name" json:"class_name"`
	Homeroom  string `db:"homeroom" json:"homeroom"`
}
