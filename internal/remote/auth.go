package remote

// Authenticator provides credentials for a registry host.
type Authenticator interface {
	Authenticate(registry string) (username, password string, err error)
}
