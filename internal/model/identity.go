package model

// Identity is the authenticated user a session belongs to.
type Identity struct {
	RecipientID string `json:"recipientId" mapstructure:"recipient_id" yaml:"recipient_id"`
	DisplayName string `json:"displayName" mapstructure:"display_name" yaml:"display_name"`
}

// Valid reports whether the identity carries a recipient id.
func (i Identity) Valid() bool {
	return i.RecipientID != ""
}
