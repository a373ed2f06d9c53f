package domain

// ProviderType identifies an external calendar service.
type ProviderType string

const (
	// ProviderGoogle is Google Calendar (OAuth2 + Calendar API v3).
	ProviderGoogle ProviderType = "google"
	// ProviderCalDAV is a CalDAV server (Fastmail, Nextcloud, iCloud,
	// self-hosted) authenticated with username and app password.
	ProviderCalDAV ProviderType = "caldav"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid reports whether the provider type is recognized.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderCalDAV:
		return true
	default:
		return false
	}
}

// RequiresOAuth reports whether the provider authenticates with OAuth2.
func (p ProviderType) RequiresOAuth() bool {
	return p == ProviderGoogle
}

// DisplayName returns a human-readable name for the provider.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google Calendar"
	case ProviderCalDAV:
		return "CalDAV"
	default:
		return string(p)
	}
}
