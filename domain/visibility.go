package domain

// Visibility is the federation-safe visibility scope of a note, computed
// from an activity's to/cc addressing before anything is persisted.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityHome      Visibility = "home"
	VisibilityFollowers Visibility = "followers"
	VisibilitySpecified Visibility = "specified"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityHome, VisibilityFollowers, VisibilitySpecified:
		return true
	}
	return false
}

// Announceable reports whether a third party may renote content with this
// visibility.
func (v Visibility) Announceable() bool {
	return v == VisibilityPublic || v == VisibilityHome
}

// Audience is the parsed addressing of an activity: a visibility scope plus,
// for Specified, the explicit recipient set.
type Audience struct {
	Visibility Visibility
	Recipients []*RemoteAccount
}
