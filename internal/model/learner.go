package model

import "encoding/json"

// ProgressDetails holds section and point counters for one enrollment.
// Any counter may be absent.
type ProgressDetails struct {
	SectionsWorked   *float64 `json:"sections_worked"`
	SectionsPossible *float64 `json:"sections_possible"`
	PointsEarned     *float64 `json:"points_earned"`
	PointsPossible   *float64 `json:"points_possible"`
}

// Enrollment links a learner to one course.
type Enrollment struct {
	ID              ID               `json:"id"`
	CourseID        ID               `json:"course_id"`
	DateEnrolled    string           `json:"date_enrolled"`
	IsEnrolled      bool             `json:"is_enrolled"`
	ProgressPercent *float64         `json:"progress_percent"`
	ProgressDetails *ProgressDetails `json:"progress_details"`
}

// Learner is one record of the learner-metrics listing.
type Learner struct {
	ID          ID           `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	Fullname    string       `json:"fullname"`
	DateJoined  string       `json:"date_joined"`
	IsActive    bool         `json:"is_active"`
	Enrollments []Enrollment `json:"enrollments"`
}

// UnmarshalJSON reads enrollments from either "enrollments" or
// "enrollmentdata_set", depending on which endpoint produced the record.
func (l *Learner) UnmarshalJSON(data []byte) error {
	type learnerAlias Learner
	var raw struct {
		learnerAlias
		EnrollmentDataSet []Enrollment `json:"enrollmentdata_set"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Learner(raw.learnerAlias)
	if len(l.Enrollments) == 0 && len(raw.EnrollmentDataSet) > 0 {
		l.Enrollments = raw.EnrollmentDataSet
	}
	return nil
}

// EnrollmentIndex maps course IDs to the learner's enrollment in that course.
func (l Learner) EnrollmentIndex() map[ID]Enrollment {
	index := make(map[ID]Enrollment, len(l.Enrollments))
	for _, e := range l.Enrollments {
		if _, ok := index[e.CourseID]; ok {
			continue
		}
		index[e.CourseID] = e
	}
	return index
}
