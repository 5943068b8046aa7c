package models

import "time"

// ArtifactKind names the document-like sub-entities attached to a request.
type ArtifactKind string

const (
	ArtifactProposal        ArtifactKind = "proposal"
	ArtifactDefenseSchedule ArtifactKind = "defense_schedule"
	ArtifactFinalForm       ArtifactKind = "final_form"
)

// Artifact is one version of a submitted document. DocumentRef is an opaque
// reference produced by the document storage collaborator.
type Artifact struct {
	ID          string       `json:"id"`
	RequestID   string       `json:"request_id"`
	Kind        ArtifactKind `json:"kind"`
	Version     int          `json:"version"`
	DocumentRef string       `json:"document_ref,omitempty"`
	Comment     string       `json:"comment,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`

	// Defense schedule window; zero for other kinds.
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Location string     `json:"location,omitempty"`
}

// ArtifactSet holds every version of every artifact of a request, oldest first.
type ArtifactSet struct {
	Proposals        []*Artifact `json:"proposals"`
	DefenseSchedules []*Artifact `json:"defense_schedules"`
	FinalForms       []*Artifact `json:"final_forms"`
}

// NewArtifactSet returns an empty set with non-nil slices.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{
		Proposals:        make([]*Artifact, 0),
		DefenseSchedules: make([]*Artifact, 0),
		FinalForms:       make([]*Artifact, 0),
	}
}

// Add appends an artifact to the list of its kind.
func (s *ArtifactSet) Add(a *Artifact) {
	switch a.Kind {
	case ArtifactProposal:
		s.Proposals = append(s.Proposals, a)
	case ArtifactDefenseSchedule:
		s.DefenseSchedules = append(s.DefenseSchedules, a)
	case ArtifactFinalForm:
		s.FinalForms = append(s.FinalForms, a)
	}
}

// Of returns all versions of one kind.
func (s *ArtifactSet) Of(kind ArtifactKind) []*Artifact {
	switch kind {
	case ArtifactProposal:
		return s.Proposals
	case ArtifactDefenseSchedule:
		return s.DefenseSchedules
	case ArtifactFinalForm:
		return s.FinalForms
	default:
		return nil
	}
}

// Latest returns the newest version of a kind, or nil.
func (s *ArtifactSet) Latest(kind ArtifactKind) *Artifact {
	versions := s.Of(kind)
	if len(versions) == 0 {
		return nil
	}

	latest := versions[0]
	for _, a := range versions[1:] {
		if a.Version > latest.Version {
			latest = a
		}
	}

	return latest
}

// NextVersion returns the version number the next artifact of kind gets.
func (s *ArtifactSet) NextVersion(kind ArtifactKind) int {
	latest := s.Latest(kind)
	if latest == nil {
		return 1
	}

	return latest.Version + 1
}
