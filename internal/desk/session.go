package desk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"guest-checkin/internal/models"
	"guest-checkin/internal/roster"
)

const shortIDLen = 8

// Service is the check-in surface the desk drives
type Service interface {
	Watch(ctx context.Context) (<-chan models.ChangeEvent, error)
	ApplyChange(ctx context.Context, ev models.ChangeEvent) (bool, error)
	Guests() []models.Guest
	Search(term string) []models.Guest
	Guest(id string) (models.Guest, error)
	Add(ctx context.Context, fields models.Fields) (*models.Guest, error)
	Edit(ctx context.Context, id string, changes models.Fields) (*models.Guest, error)
	Delete(ctx context.Context, id string) error
	Confirm(ctx context.Context, id, primary, companion string) (*models.Guest, error)
	Unconfirm(ctx context.Context, id string) (*models.Guest, error)
	Export(dir, baseName string) (string, error)
	Audit() []error
}

// Session runs one desk: staff input and remote changes are handled one at a time
type Session struct {
	svc       Service
	in        io.Reader
	out       io.Writer
	nameField string
	state     State
	log       zerolog.Logger
}

// NewSession creates a desk session reading commands from in and writing to out
func NewSession(svc Service, in io.Reader, out io.Writer, nameField string, log zerolog.Logger) *Session {
	return &Session{
		svc:       svc,
		in:        in,
		out:       out,
		nameField: nameField,
		state:     Idle{},
		log:       log.With().Str("component", "Desk").Logger(),
	}
}

// State returns the current desk state
func (s *Session) State() State {
	return s.state
}

// Run processes input until quit, end of input or ctx cancellation
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, err := s.svc.Watch(ctx)
	if err != nil {
		return err
	}
	lines := readLines(ctx, s.in)

	s.printHelp()
	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handleLine(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
			s.prompt()
		case ev, ok := <-changes:
			if !ok {
				s.log.Warn().Msg("Change subscription closed, list will not refresh")
				changes = nil
				continue
			}
			s.applyChange(ctx, ev)
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (s *Session) applyChange(ctx context.Context, ev models.ChangeEvent) {
	changed, err := s.svc.ApplyChange(ctx, ev)
	if err != nil {
		s.log.Error().Err(err).Str("op", string(ev.Type)).Msg("Failed to apply change")
		return
	}
	if !changed {
		return
	}
	s.log.Debug().Str("op", string(ev.Type)).Str("guest_id", ev.ID).Msg("Roster updated")

	if s.reconcile() {
		fmt.Fprintln(s.out, "\n⚠️  The guest you were working on was removed by another desk.")
		s.prompt()
	}
}

// reconcile leaves the current state when its guest is gone and reports whether it did
func (s *Session) reconcile() bool {
	before := s.state
	s.state = Reconcile(s.state, func(id string) bool {
		_, err := s.svc.Guest(id)
		return err == nil
	})
	return before != s.state
}

func (s *Session) handleLine(ctx context.Context, line string) bool {
	switch st := s.state.(type) {
	case ConfirmingGuest:
		s.handleConfirming(ctx, st, line)
	case EditingGuest:
		s.handleEditing(ctx, st, line)
	default:
		return s.handleCommand(ctx, line)
	}
	return false
}

func (s *Session) handleCommand(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "help", "h", "?":
		s.printHelp()
	case "list", "ls", "search":
		s.printGuests(s.svc.Search(arg))
	case "confirm", "c":
		s.begin(arg, BeginConfirm)
	case "edit", "e":
		s.begin(arg, BeginEdit)
	case "unconfirm", "u":
		s.unconfirm(ctx, arg)
	case "delete", "rm":
		s.delete(ctx, arg)
	case "add", "a":
		s.add(ctx, arg)
	case "export":
		s.export(arg)
	case "audit":
		s.audit()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Goodbye! 👋")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command %q. Type 'help' for commands.\n", cmd)
	}
	return false
}

func (s *Session) begin(ref string, transition func(State, string) (State, error)) {
	g, err := s.resolve(ref)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	next, err := transition(s.state, g.ID)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	s.state = next
	s.printGuest(g)

	switch next.(type) {
	case ConfirmingGuest:
		if g.HasCompanion() {
			fmt.Fprintln(s.out, "Enter bracelet numbers: <guest> <companion> (or 'cancel')")
		} else {
			fmt.Fprintln(s.out, "Enter bracelet number (or 'cancel')")
		}
	case EditingGuest:
		fmt.Fprintln(s.out, "Enter changes as Key=value; Key=value ('done' to finish)")
	}
}

func (s *Session) handleConfirming(ctx context.Context, st ConfirmingGuest, line string) {
	if isCancel(line) {
		s.state = Cancel(s.state)
		fmt.Fprintln(s.out, "Confirmation cancelled.")
		return
	}

	numbers := strings.Fields(line)
	var primary, companion string
	if len(numbers) > 0 {
		primary = numbers[0]
	}
	if len(numbers) > 1 {
		companion = numbers[1]
	}

	next, err := SetDraft(st, primary, companion)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	s.state = next

	g, err := s.svc.Confirm(ctx, st.ID, primary, companion)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		s.reconcile()
		return
	}
	s.state = Idle{}
	fmt.Fprintf(s.out, "✅ %s confirmed with bracelet %s\n", g.DisplayName(s.nameField), braceletLabel(*g))
}

func (s *Session) handleEditing(ctx context.Context, st EditingGuest, line string) {
	if line == "" || isCancel(line) || strings.EqualFold(line, "done") {
		s.state = Cancel(s.state)
		fmt.Fprintln(s.out, "Done editing.")
		return
	}

	changes, err := ParseFields(splitPairs(line))
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	g, err := s.svc.Edit(ctx, st.ID, changes)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		s.reconcile()
		return
	}
	fmt.Fprintln(s.out, "✅ Saved.")
	s.printGuest(*g)
}

func (s *Session) unconfirm(ctx context.Context, ref string) {
	g, err := s.resolve(ref)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	if _, err := s.svc.Unconfirm(ctx, g.ID); err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "✅ %s is pending again\n", g.DisplayName(s.nameField))
}

func (s *Session) delete(ctx context.Context, ref string) {
	g, err := s.resolve(ref)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	if err := s.svc.Delete(ctx, g.ID); err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "✅ %s deleted\n", g.DisplayName(s.nameField))
}

func (s *Session) add(ctx context.Context, arg string) {
	fields, err := ParseFields(splitPairs(arg))
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	g, err := s.svc.Add(ctx, fields)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "✅ Added %s (%s)\n", g.DisplayName(s.nameField), shortID(g.ID))
}

func (s *Session) export(name string) {
	path, err := s.svc.Export("", name)
	if err != nil {
		fmt.Fprintf(s.out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "✅ Exported to %s\n", path)
}

func (s *Session) audit() {
	problems := s.svc.Audit()
	if len(problems) == 0 {
		fmt.Fprintln(s.out, "✅ No bracelet problems found.")
		return
	}
	fmt.Fprintf(s.out, "⚠️  %d bracelet problem(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(s.out, "  - %v\n", p)
	}
}

// resolve finds a guest by full id or unique id prefix
func (s *Session) resolve(ref string) (models.Guest, error) {
	if ref == "" {
		return models.Guest{}, errors.New("missing guest id")
	}
	if g, err := s.svc.Guest(ref); err == nil {
		return g, nil
	}

	var matches []models.Guest
	for _, g := range s.svc.Guests() {
		if strings.HasPrefix(g.ID, ref) {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 0:
		return models.Guest{}, fmt.Errorf("no guest with id %q", ref)
	case 1:
		return matches[0], nil
	default:
		return models.Guest{}, fmt.Errorf("id %q matches %d guests", ref, len(matches))
	}
}

func (s *Session) prompt() {
	switch st := s.state.(type) {
	case ConfirmingGuest:
		fmt.Fprintf(s.out, "[confirm %s] > ", shortID(st.ID))
	case EditingGuest:
		fmt.Fprintf(s.out, "[edit %s] > ", shortID(st.ID))
	default:
		fmt.Fprint(s.out, "> ")
	}
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.out, "\nCommands:")
	fmt.Fprintln(s.out, "  list [text]          List guests, optionally filtered")
	fmt.Fprintln(s.out, "  confirm <id>         Check a guest in and assign bracelets")
	fmt.Fprintln(s.out, "  unconfirm <id>       Return a guest to pending")
	fmt.Fprintln(s.out, "  edit <id>            Change a guest's fields")
	fmt.Fprintln(s.out, "  add Key=value; ...   Add a guest")
	fmt.Fprintln(s.out, "  delete <id>          Remove a guest")
	fmt.Fprintln(s.out, "  export [name]        Write the list to an XLSX file")
	fmt.Fprintln(s.out, "  audit                Check bracelet numbers")
	fmt.Fprintln(s.out, "  quit                 Exit")
}

func (s *Session) printGuests(guests []models.Guest) {
	if len(guests) == 0 {
		fmt.Fprintln(s.out, "\nNo guests found.")
		return
	}

	fmt.Fprintf(s.out, "\n📋 Guests (%d shown, %d confirmed):\n", len(guests), roster.CountConfirmed(guests))
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
	for _, g := range guests {
		status := "⏳"
		if g.IsConfirmed {
			status = "✅"
		}
		fmt.Fprintf(s.out, "%s %-8s  %-32s  %s\n", status, shortID(g.ID), g.DisplayName(s.nameField), braceletLabel(g))
	}
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
}

func (s *Session) printGuest(g models.Guest) {
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
	fmt.Fprintf(s.out, "ID: %s\n", g.ID)
	for _, key := range g.Fields.Keys() {
		if key == models.HasCompanionField {
			continue
		}
		fmt.Fprintf(s.out, "%s: %s\n", key, g.Fields.String(key))
	}
	companion := "No"
	if g.HasCompanion() {
		companion = "Si"
	}
	fmt.Fprintf(s.out, "Companion: %s\n", companion)
	fmt.Fprintf(s.out, "Status: %s\n", g.Status())
	if g.IsConfirmed {
		fmt.Fprintf(s.out, "Bracelet: %s\n", braceletLabel(g))
	}
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
}

func braceletLabel(g models.Guest) string {
	switch {
	case g.BraceletNumber == "":
		return "-"
	case g.CompanionBraceletNumber == "":
		return g.BraceletNumber
	default:
		return g.BraceletNumber + " / " + g.CompanionBraceletNumber
	}
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func isCancel(line string) bool {
	return strings.EqualFold(line, "cancel")
}
