package tle

import "time"

// TLEEntry is one named two-line element set as read from a catalog file.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Elements are the decoded fields of a two-line element set. Angles are in
// degrees and mean motion in revolutions per day, as printed.
type Elements struct {
	SatelliteNumber  int
	Classification   byte
	Designator       string // international designator, e.g. "98067A"
	Epoch            time.Time
	MeanMotionDot    float64 // first derivative of mean motion / 2, rev/day^2
	MeanMotionDDot   float64 // second derivative of mean motion / 6, rev/day^3
	BStar            float64 // drag term, 1/earth radii
	EphemerisType    int
	ElementSet       int
	Inclination      float64
	RAAN             float64
	Eccentricity     float64
	ArgPerigee       float64
	MeanAnomaly      float64
	MeanMotion       float64
	RevolutionNumber int
}
