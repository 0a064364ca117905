package domain

import "fmt"

// Section identifies one monitored admin collection with an unread badge.
type Section string

const (
	SectionMessages            Section = "messages"
	SectionVacancyApplications Section = "vacancy_applications"
	SectionTenderSubmissions   Section = "tender_submissions"
	SectionCommercialOffers    Section = "commercial_offers"
)

// AllSections lists every monitored section in display order.
var AllSections = []Section{
	SectionMessages,
	SectionVacancyApplications,
	SectionTenderSubmissions,
	SectionCommercialOffers,
}

// ParseSection validates a raw section name.
func ParseSection(raw string) (Section, error) {
	s := Section(raw)
	for _, known := range AllSections {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, raw)
}

// UnreadCounts is the local projection of the remote unread counts.
type UnreadCounts struct {
	Messages            int `json:"messages"`
	VacancyApplications int `json:"vacancyApplications"`
	TenderSubmissions   int `json:"tenderSubmissions"`
	CommercialOffers    int `json:"commercialOffers"`
}

// Get returns the counter that belongs to section. Unknown sections read as zero.
func (c UnreadCounts) Get(section Section) int {
	switch section {
	case SectionMessages:
		return c.Messages
	case SectionVacancyApplications:
		return c.VacancyApplications
	case SectionTenderSubmissions:
		return c.TenderSubmissions
	case SectionCommercialOffers:
		return c.CommercialOffers
	}
	return 0
}

// Set returns a copy of c with the counter for section replaced.
func (c UnreadCounts) Set(section Section, n int) UnreadCounts {
	switch section {
	case SectionMessages:
		c.Messages = n
	case SectionVacancyApplications:
		c.VacancyApplications = n
	case SectionTenderSubmissions:
		c.TenderSubmissions = n
	case SectionCommercialOffers:
		c.CommercialOffers = n
	}
	return c
}

// Total sums all four counters.
func (c UnreadCounts) Total() int {
	return c.Messages + c.VacancyApplications + c.TenderSubmissions + c.CommercialOffers
}

// CounterStatus is the per-section lifecycle of a local counter.
type CounterStatus string

const (
	CounterUnknown CounterStatus = "unknown"
	CounterLoading CounterStatus = "loading"
	CounterKnown   CounterStatus = "known"
)

// CounterState pairs a status with the last successfully loaded count.
type CounterState struct {
	Status CounterStatus `json:"status"`
	Count  int           `json:"count"`
}
