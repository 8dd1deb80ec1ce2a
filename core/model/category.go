package model

// Category identifies one of the three token buckets a grant is split into.
type Category int

const (
	CategoryProject Category = iota
	CategoryParticipant
	CategoryAuditor
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryProject, CategoryParticipant, CategoryAuditor}

// String returns the lower-case category name used in documents and labels.
func (c Category) String() string {
	switch c {
	case CategoryProject:
		return "project"
	case CategoryParticipant:
		return "participant"
	case CategoryAuditor:
		return "auditor"
	default:
		return "unknown"
	}
}

// CategorySplit holds one amount per token category.
type CategorySplit struct {
	Project     float64 `json:"project"`
	Participant float64 `json:"participant"`
	Auditor     float64 `json:"auditor"`
}

// Total returns the sum of the three categories.
func (s CategorySplit) Total() float64 {
	return s.Project + s.Participant + s.Auditor
}

// Get returns the amount for c. Unknown categories yield 0.
func (s CategorySplit) Get(c Category) float64 {
	switch c {
	case CategoryProject:
		return s.Project
	case CategoryParticipant:
		return s.Participant
	case CategoryAuditor:
		return s.Auditor
	default:
		return 0
	}
}

// Add returns the element-wise sum of s and o.
func (s CategorySplit) Add(o CategorySplit) CategorySplit {
	return CategorySplit{
		Project:     s.Project + o.Project,
		Participant: s.Participant + o.Participant,
		Auditor:     s.Auditor + o.Auditor,
	}
}

// Scale multiplies every category by f.
func (s CategorySplit) Scale(f float64) CategorySplit {
	return CategorySplit{
		Project:     s.Project * f,
		Participant: s.Participant * f,
		Auditor:     s.Auditor * f,
	}
}

// Div divides every category by d. Callers guarantee d != 0.
func (s CategorySplit) Div(d float64) CategorySplit {
	return CategorySplit{
		Project:     s.Project / d,
		Participant: s.Participant / d,
		Auditor:     s.Auditor / d,
	}
}
