package screen

// Inquiry is a yes/no question shown by the host.
type Inquiry struct {
	Title            string
	Text             string
	AffirmativeLabel string
	NegativeLabel    string

	// OnAffirm runs when the user accepts. May be nil.
	OnAffirm func()

	// OnDeny runs when the user declines. May be nil.
	OnDeny func()
}

// Affirm runs OnAffirm if set.
func (q Inquiry) Affirm() {
	if q.OnAffirm != nil {
		q.OnAffirm()
	}
}

// Deny runs OnDeny if set.
func (q Inquiry) Deny() {
	if q.OnDeny != nil {
		q.OnDeny()
	}
}

// Dialog shows inquiries. Inquire must not block; the answer is delivered
// later through the inquiry's continuations.
type Dialog interface {
	Inquire(q Inquiry)
}

// Host is the application embedding the settings screen.
type Host interface {
	Dialog

	// Quit exits the application so restart-only settings take effect.
	Quit()

	// Close removes the settings screen.
	Close()

	// Error reports a failure that happened inside a dialog continuation.
	Error(err error)
}
