// Package session implements the operator conversation: a state machine
// that interprets free-text replies according to the pending command, and
// the controller that serializes all inbound updates through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/scoutbot/internal/config"
	"github.com/edgard/scoutbot/internal/database"
	"github.com/edgard/scoutbot/internal/directory"
	apperrors "github.com/edgard/scoutbot/internal/errors"
	"github.com/edgard/scoutbot/internal/invite"
	"github.com/edgard/scoutbot/internal/limiter"
	"github.com/edgard/scoutbot/internal/metrics"
	"github.com/edgard/scoutbot/internal/stats"
)

// Replier delivers messages and files to the operator.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendFile(ctx context.Context, chatID int64, path string) error
}

// BotOpener validates a bot token and returns a Replier speaking as that
// bot, along with its username.
type BotOpener interface {
	OpenBot(ctx context.Context, token string) (Replier, string, error)
}

// Sender identifies the operator who sent an update.
type Sender struct {
	ID        int64
	FirstName string
}

// Deps are the collaborators a Machine borrows. The Machine never closes
// them.
type Deps struct {
	Store     database.Store
	Directory directory.Client
	Limiter   *limiter.Limiter
	Engine    *invite.Engine
	Exporter  *stats.Exporter
	Replier   Replier
	Bots      BotOpener
	Phone     string
	Admins    []int64
	Messages  config.MessagesConfig
	Logger    *slog.Logger
	Now       func() time.Time
}

// Machine holds the conversation state of the single operator session.
// It is not safe for concurrent use; the Controller serializes access.
type Machine struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	state         State
	codeRequested bool
	statsBot      Replier
	statsBotName  string
}

func NewMachine(deps Deps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		deps:   deps,
		logger: logger.With("component", "session"),
		now:    now,
		state:  None{},
	}
}

// State returns the pending state.
func (m *Machine) State() State {
	return m.state
}

func (m *Machine) setState(ctx context.Context, s State) {
	if StateName(s) != StateName(m.state) {
		m.logger.DebugContext(ctx, "Session state changed", "from", StateName(m.state), "to", StateName(s))
	}
	m.state = s
}

func (m *Machine) reply(ctx context.Context, chatID int64, text string) {
	if err := m.deps.Replier.SendText(ctx, chatID, text); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
	}
}

// fail reports err to the operator and abandons the pending step.
func (m *Machine) fail(ctx context.Context, chatID int64, err error) {
	m.logger.WarnContext(ctx, "Operation failed", "state", StateName(m.state), "code", apperrors.Code(err), "error", err)
	m.reply(ctx, chatID, m.renderError(err))
	m.setState(ctx, None{})
}

func (m *Machine) renderError(err error) string {
	switch apperrors.Code(err) {
	case apperrors.CodeStorage:
		return fmt.Sprintf("Database error: %v. Try again later.", err)
	case apperrors.CodeTransport:
		return fmt.Sprintf("Telegram client error: %v.\nUse /send_code and then /signin if the session expired.", err)
	}
	return m.deps.Messages.GeneralError
}

func (m *Machine) isAdmin(id int64) bool {
	for _, admin := range m.deps.Admins {
		if admin == id {
			return true
		}
	}
	return false
}

// HandleCommand starts cmd, replacing whatever step was pending.
func (m *Machine) HandleCommand(ctx context.Context, chatID int64, from Sender, cmd Command) {
	m.logger.InfoContext(ctx, "Handling command", "command", cmd, "chat_id", chatID, "user_id", from.ID)

	switch cmd {
	case CmdStart:
		m.start(ctx, chatID, from)
	case CmdHelp:
		m.reply(ctx, chatID, commandList())
		m.setState(ctx, None{})
	case CmdCleanCache:
		m.cleanCache(ctx, chatID)
	case CmdCleanDB:
		m.reply(ctx, chatID, "Are you sure you want to clean up the database? (yes/no)")
		m.setState(ctx, AwaitDBWipeConfirm{})
	case CmdDisconnect:
		m.disconnect(ctx, chatID)
	case CmdImport:
		m.promptConnected(ctx, chatID, "From which source group do you want to import?", AwaitImportSource{})
	case CmdInvite:
		m.promptConnected(ctx, chatID,
			"Specify the number of users, the destination channel and whether to include already invited users. "+
				"Format: limit,destination,yes|no (e.g: 150,hotelForAll,yes)", AwaitInviteSpec{})
	case CmdListChats:
		m.listChats(ctx, chatID)
	case CmdSendCode:
		m.sendCode(ctx, chatID)
	case CmdSignIn:
		m.promptSignIn(ctx, chatID)
	case CmdSignOut:
		if m.checkClient(ctx, chatID) {
			m.reply(ctx, chatID, "Are you sure you want to log out? (yes/no)")
			m.setState(ctx, AwaitSignoutConfirm{})
		}
	case CmdStat:
		if m.checkClient(ctx, chatID) {
			m.reply(ctx, chatID, "Up to which date do you want statistics? (DD-MM-YYYY). 'today' for all.")
			m.setState(ctx, AwaitStatDate{})
		}
	case CmdToken:
		m.reply(ctx, chatID, "Paste the token of the bot that should deliver statistics files.")
		m.setState(ctx, AwaitBotToken{})
	default:
		m.reply(ctx, chatID, fmt.Sprintf("Unknown command /%s.", cmd))
	}
}

// HandleText routes a free-text reply to the pending step.
func (m *Machine) HandleText(ctx context.Context, chatID int64, from Sender, text string) {
	if strings.TrimSpace(text) == "" {
		m.reply(ctx, chatID, m.deps.Messages.EmptyText)
		return
	}
	m.logger.DebugContext(ctx, "Handling text", "state", StateName(m.state), "chat_id", chatID, "user_id", from.ID)

	switch s := m.state.(type) {
	case None:
		m.reply(ctx, chatID, m.deps.Messages.NoPending)
	case AwaitDBWipeConfirm:
		m.confirmWipe(ctx, chatID, text)
	case AwaitImportSource:
		m.importFrom(ctx, chatID, strings.TrimSpace(text))
	case AwaitInviteSpec:
		m.runInvite(ctx, chatID, text)
	case AwaitSigninCode:
		m.signIn(ctx, chatID, s, text)
	case AwaitSignoutConfirm:
		m.confirmSignOut(ctx, chatID, text)
	case AwaitStatDate:
		m.exportStats(ctx, chatID, text)
	case AwaitBotToken:
		m.setStatsBot(ctx, chatID, text)
	default:
		m.logger.ErrorContext(ctx, "Unhandled session state", "state", StateName(s))
		m.setState(ctx, None{})
	}
}

func (m *Machine) ensureConnected(ctx context.Context) error {
	if m.deps.Directory.IsConnected() {
		return nil
	}
	if err := m.deps.Directory.Connect(ctx); err != nil {
		return apperrors.NewTransportError("failed to connect to the Telegram client", err)
	}
	return nil
}

// checkClient makes sure the scout session is connected and authorized,
// telling the operator otherwise.
func (m *Machine) checkClient(ctx context.Context, chatID int64) bool {
	if err := m.ensureConnected(ctx); err != nil {
		m.fail(ctx, chatID, err)
		return false
	}
	authorized, err := m.deps.Directory.IsAuthorized(ctx)
	if err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("failed to check authorization", err))
		return false
	}
	if !authorized {
		m.reply(ctx, chatID, "User not authorized. Please use /send_code and then /signin.")
		m.setState(ctx, None{})
		return false
	}
	return true
}

func (m *Machine) promptConnected(ctx context.Context, chatID int64, prompt string, next State) {
	if err := m.ensureConnected(ctx); err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	m.reply(ctx, chatID, prompt)
	m.setState(ctx, next)
}

func (m *Machine) start(ctx context.Context, chatID int64, from Sender) {
	m.setState(ctx, None{})
	greeting := fmt.Sprintf("Hello %s!", from.FirstName)

	if err := m.ensureConnected(ctx); err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	authorized, err := m.deps.Directory.IsAuthorized(ctx)
	if err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("failed to check authorization", err))
		return
	}
	if !authorized {
		if err := m.requestCode(ctx); err != nil {
			m.fail(ctx, chatID, err)
			return
		}
		m.reply(ctx, chatID, greeting+" Auth code sent.\nCall /signin command to login.")
		return
	}

	total, invited, err := m.deps.Store.Count(ctx)
	if err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	remaining, err := m.deps.Limiter.Remaining(ctx)
	if err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	m.reply(ctx, chatID, fmt.Sprintf("%s %d users stored, %d invited. %d invitations left today.\n\n%s",
		greeting, total, invited, remaining, commandList()))
}

func (m *Machine) requestCode(ctx context.Context) error {
	if err := m.deps.Directory.RequestAuthCode(ctx, m.deps.Phone); err != nil {
		return apperrors.NewTransportError("failed to request a login code", err)
	}
	m.codeRequested = true
	return nil
}

func (m *Machine) sendCode(ctx context.Context, chatID int64) {
	m.setState(ctx, None{})
	if err := m.ensureConnected(ctx); err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	authorized, err := m.deps.Directory.IsAuthorized(ctx)
	if err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("failed to check authorization", err))
		return
	}
	if authorized {
		m.reply(ctx, chatID, "Already authorized. Ready to use the bot APIs.")
		return
	}
	if err := m.requestCode(ctx); err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	m.reply(ctx, chatID, "Auth code sent. Use /signin to login.")
}

func (m *Machine) promptSignIn(ctx context.Context, chatID int64) {
	if err := m.ensureConnected(ctx); err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	authorized, err := m.deps.Directory.IsAuthorized(ctx)
	if err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("failed to check authorization", err))
		return
	}
	if authorized {
		m.reply(ctx, chatID, "Already authorized. Ready to use the bot APIs.")
		m.setState(ctx, None{})
		return
	}
	if !m.codeRequested {
		if err := m.requestCode(ctx); err != nil {
			m.fail(ctx, chatID, err)
			return
		}
	}
	m.reply(ctx, chatID, fmt.Sprintf(
		"Please paste the auth code received on %s. Separate the digits with spaces so Telegram does not invalidate it; "+
			"spaces, dashes and dots are removed before signing in.",
		m.deps.Phone))
	m.setState(ctx, AwaitSigninCode{Phone: m.deps.Phone})
}

func (m *Machine) disconnect(ctx context.Context, chatID int64) {
	if !m.checkClient(ctx, chatID) {
		return
	}
	if err := m.deps.Directory.Disconnect(ctx); err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("failed to disconnect", err))
		return
	}
	m.reply(ctx, chatID, "Client disconnected.")
	m.setState(ctx, None{})
}

func (m *Machine) cleanCache(ctx context.Context, chatID int64) {
	m.setState(ctx, None{})
	removed, err := m.deps.Exporter.Clean(ctx, 0)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to clean stats files", "error", err)
		m.reply(ctx, chatID, fmt.Sprintf("Removed %d stats files, some could not be deleted: %v", removed, err))
		return
	}
	m.reply(ctx, chatID, fmt.Sprintf("Stats files deleted (%d).", removed))
}

func (m *Machine) listChats(ctx context.Context, chatID int64) {
	if !m.checkClient(ctx, chatID) {
		return
	}
	m.setState(ctx, None{})

	var groups, channels, direct []string
	for d, err := range m.deps.Directory.Dialogs(ctx) {
		if err != nil {
			m.fail(ctx, chatID, apperrors.NewTransportError("failed to list chats", err))
			return
		}
		line := fmt.Sprintf("%s, %d", d.Name, d.ID)
		switch d.Kind {
		case directory.KindGroup:
			groups = append(groups, line)
		case directory.KindChannel:
			channels = append(channels, line)
		default:
			direct = append(direct, line)
		}
	}

	m.reply(ctx, chatID, fmt.Sprintf("Groups:\n%s\n\nChannels:\n%s\n\nPrivate chats:\n%s",
		strings.Join(groups, "\n"), strings.Join(channels, "\n"), strings.Join(direct, "\n")))
}

func (m *Machine) confirmWipe(ctx context.Context, chatID int64, text string) {
	yes, err := parseConfirm(text)
	if err != nil {
		m.reply(ctx, chatID, "Answer not accepted. Accepted: (yes/no). Try again!")
		return
	}
	if !yes {
		m.reply(ctx, chatID, "Operation cancelled. Your database is untouched.")
		m.setState(ctx, None{})
		return
	}

	deleted, err := m.deps.Store.DeleteAll(ctx)
	if err != nil {
		m.fail(ctx, chatID, err)
		return
	}
	m.reply(ctx, chatID, fmt.Sprintf("Database data burned (%d users removed). DB structure is still saved.", deleted))
	m.setState(ctx, None{})
}

func (m *Machine) importFrom(ctx context.Context, chatID int64, name string) {
	m.reply(ctx, chatID, fmt.Sprintf("Importing users from %s...", name))

	dialog, ok, err := directory.FindDialog(ctx, m.deps.Directory, name)
	if err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("failed to list chats", err))
		return
	}
	if !ok {
		m.reply(ctx, chatID, fmt.Sprintf("Group %s not found in chats. Use /import to try again.", name))
		m.setState(ctx, None{})
		return
	}
	if dialog.Kind == directory.KindDirect {
		m.reply(ctx, chatID, fmt.Sprintf("%s is a private chat, not a group. Use /import to try again.", name))
		m.setState(ctx, None{})
		return
	}

	inserted, existing := 0, 0
	for p, err := range m.deps.Directory.Participants(ctx, dialog) {
		if err != nil {
			m.logger.WarnContext(ctx, "Participant listing interrupted", "dialog", name, "error", err)
			m.reply(ctx, chatID, fmt.Sprintf("Import from %s interrupted after %d new users: %v", name, inserted, err))
			m.setState(ctx, None{})
			return
		}
		if p.IsSelf || p.IsBot || m.isAdmin(p.ID) {
			continue
		}

		res, err := m.deps.Store.Insert(ctx, p.ID, p.Username, p.AccessHash)
		if err != nil {
			m.fail(ctx, chatID, err)
			return
		}
		metrics.IncImport(res.String())
		if res == database.Inserted {
			inserted++
		} else {
			existing++
		}
	}

	m.logger.InfoContext(ctx, "Import finished", "dialog", name, "inserted", inserted, "existing", existing)
	m.reply(ctx, chatID, fmt.Sprintf("Successfully imported %d users from group %s (%d already stored).", inserted, name, existing))
	m.setState(ctx, None{})
}

func (m *Machine) runInvite(ctx context.Context, chatID int64, text string) {
	spec, err := parseInviteRequest(text)
	if err != nil {
		m.reply(ctx, chatID, fmt.Sprintf(
			"%v.\nRight format (3 elements): limit,destination,yes|no (e.g: 150,hotelForAll,yes). Try again!", err))
		return
	}

	forcing := "not forcing"
	if spec.Force {
		forcing = "forcing"
	}
	m.reply(ctx, chatID, fmt.Sprintf("Trying to invite %d users to %s (%s)...", spec.Limit, spec.Destination, forcing))

	sum, err := m.deps.Engine.Run(ctx, invite.Request{
		Limit:       spec.Limit,
		Destination: spec.Destination,
		Force:       spec.Force,
	})
	m.setState(ctx, None{})
	if err != nil {
		m.reply(ctx, chatID, m.renderInviteError(err, sum))
		return
	}
	m.reply(ctx, chatID, renderSummary(sum))
}

func (m *Machine) renderInviteError(err error, sum invite.Summary) string {
	switch apperrors.Code(err) {
	case apperrors.CodeDestinationNotFound:
		return fmt.Sprintf("Group %s not found in chats. Use /invite to try again.", sum.Destination)

	case apperrors.CodeNotAChannel:
		return fmt.Sprintf("Chat %s is not a channel. Use /invite and give me a channel name.", sum.Destination)

	case apperrors.CodeBatchTooLarge:
		return fmt.Sprintf("Cannot invite more than %d users at once. Use /invite to try again.", m.deps.Limiter.BatchCap())

	case apperrors.CodeDailyLimitExceeded:
		var exhausted *limiter.ExhaustedError
		if errors.As(err, &exhausted) {
			return fmt.Sprintf("Daily invitation limit reached. Try again after %s.",
				exhausted.RetryAfter.In(m.now().Location()).Format("02-01-2006 15:04"))
		}
		return "Daily invitation limit reached."

	case apperrors.CodeFloodWait:
		msg := "Flood error, too many attempts. Try /disconnect or, if it does not work, /sign_out after 60 seconds or more."
		var fw *directory.FloodWaitError
		if errors.As(err, &fw) && fw.Wait > 0 {
			msg += fmt.Sprintf(" Telegram asks to wait %s.", fw.Wait)
		}
		return msg + "\n\n" + renderSummary(sum)

	case apperrors.CodeResolutionFailed:
		return fmt.Sprintf("Batch stopped: %v.\nThe session cannot see this user; import the source group again.\n\n%s",
			err, renderSummary(sum))
	}

	msg := m.renderError(err)
	if sum.Attempted > 0 {
		msg += "\n\n" + renderSummary(sum)
	}
	return msg
}

func renderSummary(sum invite.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invitation batch to %s finished.\n", sum.Destination)
	fmt.Fprintf(&b, "Requested: %d\nFetched: %d\nInvited: %d\nRefused: %d (deleted: %d)\nSkipped (cooldown): %d\nFailed: %d",
		sum.Requested, sum.Fetched, sum.TotalInvited, sum.Refused, sum.Deleted, sum.Skipped, sum.Failed)
	if sum.CappedByDailyLimit {
		b.WriteString("\nDaily invitation limit reached, the batch was capped.")
	}
	return b.String()
}

var codeSeparators = strings.NewReplacer(" ", "", "-", "", ".", "")

// signIn submits the pasted login code with spaces, dashes and dots
// removed, not verbatim.
func (m *Machine) signIn(ctx context.Context, chatID int64, s AwaitSigninCode, text string) {
	code := codeSeparators.Replace(strings.TrimSpace(text))

	id, err := m.deps.Directory.SignIn(ctx, s.Phone, code)
	switch {
	case err == nil:
		m.codeRequested = false
		m.logger.InfoContext(ctx, "Scout session signed in", "user_id", id.ID)
		m.reply(ctx, chatID, fmt.Sprintf("User signed in correctly.\n\n%s", commandList()))
		m.setState(ctx, None{})

	case errors.Is(err, directory.ErrInvalidCode):
		m.reply(ctx, chatID, "Wrong auth code. Try again!")

	case errors.Is(err, directory.ErrPasswordRequired):
		m.codeRequested = false
		m.reply(ctx, chatID, "This account uses two-step verification, which is not supported. Disable it and use /send_code again.")
		m.setState(ctx, None{})

	default:
		m.codeRequested = false
		m.fail(ctx, chatID, apperrors.NewTransportError("sign in failed", err))
	}
}

func (m *Machine) confirmSignOut(ctx context.Context, chatID int64, text string) {
	yes, err := parseConfirm(text)
	if err != nil {
		m.reply(ctx, chatID, "Answer not accepted. Accepted: (yes/no). Try again!")
		return
	}
	if !yes {
		m.reply(ctx, chatID, "Operation cancelled. You're still authorized.")
		m.setState(ctx, None{})
		return
	}

	ok, err := m.deps.Directory.SignOut(ctx)
	if err != nil {
		m.fail(ctx, chatID, apperrors.NewTransportError("sign out failed", err))
		return
	}
	m.codeRequested = false
	if !ok {
		m.reply(ctx, chatID, "INTERNAL SERVER ERROR: could not log out correctly!")
	} else {
		m.reply(ctx, chatID, "Client successfully logged out. To use the APIs again use /send_code and then /signin.")
	}
	m.setState(ctx, None{})
}

func (m *Machine) exportStats(ctx context.Context, chatID int64, text string) {
	asOf, err := parseStatDate(text, m.now())
	if err != nil {
		m.reply(ctx, chatID, fmt.Sprintf("%v\nWrong date string format or date in the future. Try again!", err))
		return
	}

	path, rows, err := m.deps.Exporter.Write(ctx, m.deps.Store, asOf)
	if err != nil {
		m.fail(ctx, chatID, err)
		return
	}

	if err := m.deliver(ctx, chatID, path); err != nil {
		m.logger.ErrorContext(ctx, "Failed to deliver stats file", "path", path, "error", err)
		m.reply(ctx, chatID, "Error while sending the stat file. Try again!")
		return
	}
	if err := m.deps.Exporter.Remove(path); err != nil {
		m.logger.WarnContext(ctx, "Failed to remove delivered stats file", "path", path, "error", err)
	}

	m.reply(ctx, chatID, fmt.Sprintf("Download stat file complete (%d users).", rows))
	m.setState(ctx, None{})
}

// deliver sends the file through the statistics bot when one is set,
// falling back to the primary bot.
func (m *Machine) deliver(ctx context.Context, chatID int64, path string) error {
	if m.statsBot != nil {
		err := m.statsBot.SendFile(ctx, chatID, path)
		if err == nil {
			return nil
		}
		m.logger.WarnContext(ctx, "Statistics bot failed to deliver, using the primary bot",
			"bot", m.statsBotName, "error", err)
	}
	return m.deps.Replier.SendFile(ctx, chatID, path)
}

func (m *Machine) setStatsBot(ctx context.Context, chatID int64, text string) {
	token := strings.TrimSpace(text)
	if err := validateToken(token); err != nil {
		m.reply(ctx, chatID, fmt.Sprintf("%v. Try again!", err))
		return
	}
	if m.deps.Bots == nil {
		m.reply(ctx, chatID, "Statistics bots are not available in this deployment.")
		m.setState(ctx, None{})
		return
	}

	bot, name, err := m.deps.Bots.OpenBot(ctx, token)
	if err != nil {
		m.logger.WarnContext(ctx, "Statistics bot token rejected", "error", err)
		m.reply(ctx, chatID, fmt.Sprintf("Token rejected by Telegram: %v. Try again!", err))
		return
	}

	m.statsBot, m.statsBotName = bot, name
	m.logger.InfoContext(ctx, "Statistics bot set", "bot", name)
	m.reply(ctx, chatID, fmt.Sprintf("Statistics files will be delivered by @%s. Start a chat with it if you have not already.", name))
	m.setState(ctx, None{})
}
