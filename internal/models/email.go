package models

// Виды писем.
const (
	EmailVerification  = "verification"
	EmailPasswordReset = "password_reset"
	EmailWaitList      = "wait_list"
)

// Email письмо, поставленное в очередь на отправку.
type Email struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}
