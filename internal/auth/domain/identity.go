package domain

// Identity is the authenticated account record returned by the identity provider.
// Exactly one identity is current at a time; the verified flag only changes
// after the user clicks the emailed link and the client reloads the identity.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

// Equal reports whether two identity states are the same for the purpose of
// the subscription stream: subscribers are notified once per distinct
// transition, not once per provider event.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.ID == other.ID &&
		i.Email == other.Email &&
		i.DisplayName == other.DisplayName &&
		i.EmailVerified == other.EmailVerified &&
		i.AvatarURL == other.AvatarURL
}

// Theme is a rendering preference, persisted locally.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Language selects UI strings and the AI generation language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageMyanmar Language = "mm"
)

// Preferences are owned by the application, persisted in local key-value
// storage independent of the identity provider, and merged onto the identity
// for rendering.
type Preferences struct {
	Theme         Theme    `json:"theme"`
	Language      Language `json:"language"`
	Notifications bool     `json:"notifications"`
}

// Profile is an identity merged with local preferences, the unit the
// rendering layer consumes.
type Profile struct {
	Identity
	Preferences Preferences `json:"preferences"`
}
