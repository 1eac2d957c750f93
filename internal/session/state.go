package session

// State is the pending step of the operator conversation. It decides how
// the next free-text message is interpreted. The set of states is closed:
// only this package can implement State.
type State interface {
	pending() string
}

// None means no command is waiting for input.
type None struct{}

// AwaitDBWipeConfirm waits for yes/no before deleting every record.
type AwaitDBWipeConfirm struct{}

// AwaitImportSource waits for the name of the group to import from.
type AwaitImportSource struct{}

// AwaitInviteSpec waits for "<limit>,<destination>,<yes|no>".
type AwaitInviteSpec struct{}

// AwaitSigninCode waits for the login code sent to Phone.
type AwaitSigninCode struct {
	Phone string
}

// AwaitSignoutConfirm waits for yes/no before logging the scout session out.
type AwaitSignoutConfirm struct{}

// AwaitStatDate waits for the date statistics are exported up to.
type AwaitStatDate struct{}

// AwaitBotToken waits for the token of the bot that delivers statistics.
type AwaitBotToken struct{}

func (None) pending() string { return "none" }
func (AwaitDBWipeConfirm) pending() string { return "await_db_wipe_confirm" }
func (AwaitImportSource) pending() string { return "await_import_source" }
func (AwaitInviteSpec) pending() string { return "await_invite_spec" }
func (AwaitSigninCode) pending() string { return "await_signin_code" }
func (AwaitSignoutConfirm) pending() string { return "await_signout_confirm" }
func (AwaitStatDate) pending() string { return "await_stat_date" }
func (AwaitBotToken) pending() string { return "await_bot_token" }

// StateName returns a stable name for logging.
func StateName(s State) string {
	if s == nil {
		return None{}.pending()
	}
	return s.pending()
}
