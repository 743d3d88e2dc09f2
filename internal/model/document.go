package model

import "time"

// DocumentType is the declared category of a document.
type DocumentType string

const (
	TypeReport                DocumentType = "report"
	TypeTechnicalSheet        DocumentType = "technical_sheet"
	TypeIndividualSheet       DocumentType = "individual_sheet"
	TypeExperimentalData      DocumentType = "experimental_data"
	TypeForm                  DocumentType = "form"
	TypeScientificPublication DocumentType = "scientific_publication"
	TypeThesis                DocumentType = "thesis"
	TypeImage                 DocumentType = "image"
	TypePresentation          DocumentType = "presentation"
	TypeOther                 DocumentType = "other"
)

// ValidDocumentType reports whether t is one of the declared categories.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case TypeReport, TypeTechnicalSheet, TypeIndividualSheet, TypeExperimentalData,
		TypeForm, TypeScientificPublication, TypeThesis, TypeImage, TypePresentation, TypeOther:
		return true
	}
	return false
}

// LifecycleState is the soft-delete state of a document.
type LifecycleState string

const (
	StateActive  LifecycleState = "active"
	StateTrashed LifecycleState = "trashed"
)

// ContextKind identifies the kind of external entity a document can be
// attached to. A document holds at most one link per kind.
type ContextKind string

const (
	KindProject           ContextKind = "project"
	KindActivity          ContextKind = "activity"
	KindTask              ContextKind = "task"
	KindSeminar           ContextKind = "seminar"
	KindTraining          ContextKind = "training"
	KindInternship        ContextKind = "internship"
	KindSupervision       ContextKind = "supervision"
	KindKnowledgeTransfer ContextKind = "knowledge_transfer"
	KindEvent             ContextKind = "event"
)

// ContextKinds returns every supported kind in a stable order.
func ContextKinds() []ContextKind {
	return []ContextKind{
		KindProject, KindActivity, KindTask, KindSeminar, KindTraining,
		KindInternship, KindSupervision, KindKnowledgeTransfer, KindEvent,
	}
}

// ValidContextKind reports whether k is a supported kind.
func ValidContextKind(k ContextKind) bool {
	for _, kk := range ContextKinds() {
		if k == kk {
			return true
		}
	}
	return false
}

const (
	// MaxTags is the maximum number of tags a document may carry.
	MaxTags = 20
	// MaxTagLength is the maximum length of a single tag.
	MaxTagLength = 50
)

// Document is the core domain entity: a shared file artifact with an owner,
// a soft-delete lifecycle, per-kind context links and per-user share grants.
// This is a pure domain model with no database-specific tags; persistence
// lives in the repository layer.
type Document struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Type        DocumentType `json:"type"`

	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`

	IsPublic    bool     `json:"is_public"`
	Tags        []string `json:"tags"`
	FavoritedBy []string `json:"favorited_by,omitempty"`

	// Links holds at most one entity reference per context kind.
	Links map[ContextKind]string `json:"links,omitempty"`

	State     LifecycleState `json:"state"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Trashed reports whether the document is in the trash.
func (d *Document) Trashed() bool {
	return d.State == StateTrashed
}

// LinkedTo returns the entity id linked for the given kind, if any.
func (d *Document) LinkedTo(kind ContextKind) (string, bool) {
	if d.Links == nil {
		return "", false
	}
	id, ok := d.Links[kind]
	return id, ok
}

// FavoritedByUser reports whether the given user has favorited the document.
func (d *Document) FavoritedByUser(userID string) bool {
	for _, u := range d.FavoritedBy {
		if u == userID {
			return true
		}
	}
	return false
}
