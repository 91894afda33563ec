package connection

// CredentialProvider supplies the opaque credential sent in the auth
// envelope after each successful open. ok is false when no credential is
// available, in which case no auth envelope is sent.
type CredentialProvider interface {
	Credential() (token string, ok bool)
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func() (string, bool)

// Credential implements CredentialProvider.
func (f CredentialFunc) Credential() (string, bool) {
	return f()
}

// StaticCredential always returns the same token. The empty string means
// no credential.
type StaticCredential string

// Credential implements CredentialProvider.
func (s StaticCredential) Credential() (string, bool) {
	return string(s), s != ""
}

// Compile-time interface satisfaction checks.
var (
	_ CredentialProvider = CredentialFunc(nil)
	_ CredentialProvider = StaticCredential("")
)
