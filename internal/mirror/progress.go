package mirror

// Kind classifies a resource for progress reporting.
type Kind int

const (
	KindManifest Kind = iota
	KindInit
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest"
	case KindInit:
		return "init"
	default:
		return "media"
	}
}

// ProgressUpdate reports the outcome of one resource.
type ProgressUpdate struct {
	URL   string
	Kind  Kind
	Bytes int64
	// Existing is set when the object was already at the destination.
	Existing  bool
	Completed bool
	Error     error
}

// Totals counts the resources of an asset per kind.
type Totals struct {
	Manifests int
	Init      int
	Media     int
}

// All returns the total number of resources.
func (t Totals) All() int { return t.Manifests + t.Init + t.Media }
