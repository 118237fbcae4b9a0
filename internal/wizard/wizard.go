// Package wizard drives the three step sign-up flow: base details and role, the role's
// sub-form, then confirmation.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/client"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/validation"
)

// Step is a wizard state.
type Step int

const (
	StepInitial Step = iota
	StepRoleSpecific
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepInitial:
		return "initial"
	case StepRoleSpecific:
		return "roleSpecific"
	case StepSuccess:
		return "success"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

const (
	NetworkErrorMessage   = "Network error occurred. Please try again."
	GenericFailureMessage = "Registration failed. Please try again."
	RoleRequiredMessage   = "Please select a role"
)

var (
	ErrWrongStep          = errors.New("action not available at this step")
	ErrNoRoleForm         = errors.New("no registration form for the selected role")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrAbandoned          = errors.New("submission abandoned by back or start over")
	ErrUnknownField       = errors.New("unknown field")
)

// Guard is one precondition of leaving the initial step.
type Guard string

const (
	GuardRequired      Guard = "required"
	GuardEmail         Guard = "email"
	GuardPassword      Guard = "password"
	GuardPasswordMatch Guard = "passwordMatch"
	GuardRole          Guard = "role"
)

// GuardError lists the guards that blocked Next, in form order.
type GuardError struct {
	Failed []Guard
}

func (e *GuardError) Error() string {
	names := make([]string, len(e.Failed))
	for i, g := range e.Failed {
		names[i] = string(g)
	}
	return "cannot continue: " + strings.Join(names, ", ")
}

// MissingFieldsError blocks a submit whose sub-form has blank required inputs. No request is sent.
type MissingFieldsError struct {
	Keys []string
}

func (e *MissingFieldsError) Error() string {
	return "required: " + strings.Join(e.Keys, ", ")
}

// Form is the base step.
type Form struct {
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	Password        string
	ConfirmPassword string
	UserRole        domain.UserRole
}

// MatchState is the live confirm-password indicator.
type MatchState string

const (
	MatchUnknown  MatchState = ""
	MatchOK       MatchState = "match"
	MatchMismatch MatchState = "mismatch"
)

// Submitter sends an assembled registration. *client.Client satisfies it.
type Submitter interface {
	Register(ctx context.Context, p *client.Payload, idempotencyKey string) (*dto.RegisterResponse, error)
}

// State is a copy of everything the wizard shows.
type State struct {
	Step            Step
	Form            Form
	Role            RoleData
	EmailTouched    bool
	PasswordTouched bool
	EmailErrors     []string
	PasswordErrors  []string
	MismatchError   string
	RoleError       string
	NameErrors      map[string]string
	ShowPassword    bool
	ShowConfirm     bool
	Alert           string
	Focus           string
	Submitting      bool
	Registered      *dto.RegisterResponse
}

// Wizard is safe for concurrent use; at most one submission is in flight.
type Wizard struct {
	mu        sync.Mutex
	submitter Submitter
	newKey    func() string

	state State
	// generation advances on Back and StartOver so a late response is dropped.
	generation     uint64
	idempotencyKey string
}

// New returns a wizard at the initial step.
func New(submitter Submitter) *Wizard {
	w := &Wizard{submitter: submitter, newKey: uuid.NewString}
	w.reset()
	return w
}

func (w *Wizard) reset() {
	w.state = State{Step: StepInitial, EmailErrors: []string{}, PasswordErrors: []string{}}
	w.idempotencyKey = ""
}

// State returns a snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	s.EmailErrors = append([]string{}, s.EmailErrors...)
	s.PasswordErrors = append([]string{}, s.PasswordErrors...)
	if s.Role.Fields != nil {
		s.Role = s.Role.clone()
	}
	if s.NameErrors != nil {
		names := make(map[string]string, len(s.NameErrors))
		for k, v := range s.NameErrors {
			names[k] = v
		}
		s.NameErrors = names
	}
	return s
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Step
}

// IdempotencyKey is the key the next submission will carry, empty until the first attempt.
func (w *Wizard) IdempotencyKey() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.idempotencyKey
}

// SetField stores one base field. Email is lower-cased and phone is re-masked. Touched fields
// are re-validated as they change.
func (w *Wizard) SetField(name, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepInitial {
		return ErrWrongStep
	}
	f := &w.state.Form
	switch name {
	case client.FieldEmail:
		f.Email = strings.ToLower(value)
		if w.state.EmailTouched {
			w.state.EmailErrors = validation.EmailErrors(f.Email)
		}
	case client.FieldFirstName:
		f.FirstName = value
		w.clearNameError(name, value)
	case client.FieldLastName:
		f.LastName = value
		w.clearNameError(name, value)
	case client.FieldPhone:
		f.Phone = validation.FormatPhone(value)
	case client.FieldPassword:
		f.Password = value
		if w.state.PasswordTouched {
			w.state.PasswordErrors = validation.ValidatePassword(f.Password)
		}
		w.refreshMismatch()
	case client.FieldConfirmPassword:
		f.ConfirmPassword = value
		w.refreshMismatch()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

func (w *Wizard) clearNameError(name, value string) {
	if value != "" && w.state.NameErrors != nil {
		delete(w.state.NameErrors, name)
	}
}

func (w *Wizard) refreshMismatch() {
	if w.state.MismatchError != "" && validation.PasswordsMatch(w.state.Form.Password, w.state.Form.ConfirmPassword) {
		w.state.MismatchError = ""
	}
}

// TypePhoneKey applies one keystroke to the phone input.
func (w *Wizard) TypePhoneKey(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepInitial {
		return ErrWrongStep
	}
	w.state.Form.Phone = validation.ApplyPhoneKeystroke(w.state.Form.Phone, key)
	return nil
}

// SelectRole picks the account role. A role without a sub-form is accepted here; Submit then
// stops at ErrNoRoleForm.
func (w *Wizard) SelectRole(role domain.UserRole) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepInitial {
		return ErrWrongStep
	}
	w.state.Form.UserRole = role
	if role != "" {
		w.state.RoleError = ""
	}
	return nil
}

// BlurEmail marks email touched and shows its errors.
func (w *Wizard) BlurEmail() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.EmailTouched = true
	w.state.EmailErrors = validation.EmailErrors(w.state.Form.Email)
}

// BlurPassword marks password touched and shows every unmet rule.
func (w *Wizard) BlurPassword() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.PasswordTouched = true
	w.state.PasswordErrors = validation.ValidatePassword(w.state.Form.Password)
}

// PasswordMatchState is empty until a confirmation is typed.
func (w *Wizard) PasswordMatchState() MatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Form.ConfirmPassword == "" {
		return MatchUnknown
	}
	if validation.PasswordsMatch(w.state.Form.Password, w.state.Form.ConfirmPassword) {
		return MatchOK
	}
	return MatchMismatch
}

func (w *Wizard) TogglePasswordVisibility() {
	w.mu.Lock()
	w.state.ShowPassword = !w.state.ShowPassword
	w.mu.Unlock()
}

func (w *Wizard) ToggleConfirmVisibility() {
	w.mu.Lock()
	w.state.ShowConfirm = !w.state.ShowConfirm
	w.mu.Unlock()
}

// Next leaves the initial step once every guard holds. On failure only the error sets, touched
// flags and focus change.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepInitial {
		return ErrWrongStep
	}
	f := w.state.Form
	var failed []Guard
	focus := ""
	fail := func(g Guard, section string) {
		failed = append(failed, g)
		if focus == "" {
			focus = section
		}
	}

	w.state.EmailTouched = true
	w.state.EmailErrors = validation.EmailErrors(f.Email)
	if len(w.state.EmailErrors) > 0 {
		fail(GuardEmail, client.FieldEmail)
	}

	names := map[string]string{}
	if strings.TrimSpace(f.FirstName) == "" {
		names[client.FieldFirstName] = "is required"
	}
	if strings.TrimSpace(f.LastName) == "" {
		names[client.FieldLastName] = "is required"
	}
	if _, ok := names[client.FieldFirstName]; ok {
		fail(GuardRequired, client.FieldFirstName)
	} else if len(names) > 0 {
		fail(GuardRequired, client.FieldLastName)
	}
	w.state.NameErrors = names

	w.state.PasswordTouched = true
	w.state.PasswordErrors = validation.ValidatePassword(f.Password)
	if len(w.state.PasswordErrors) > 0 {
		fail(GuardPassword, client.FieldPassword)
	}

	w.state.MismatchError = ""
	if !validation.PasswordsMatch(f.Password, f.ConfirmPassword) {
		w.state.MismatchError = validation.PasswordMismatchMessage
		fail(GuardPasswordMatch, client.FieldConfirmPassword)
	}

	w.state.RoleError = ""
	if f.UserRole == "" {
		w.state.RoleError = RoleRequiredMessage
		fail(GuardRole, client.FieldUserRole)
	}

	if len(failed) > 0 {
		w.state.Focus = focus
		return &GuardError{Failed: failed}
	}

	w.state.Focus = ""
	w.state.Step = StepRoleSpecific
	w.state.Role = NewRoleData(f.UserRole)
	return nil
}

// SetRoleField stores one scalar of the sub-form.
func (w *Wizard) SetRoleField(key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	schema, err := w.roleSchema()
	if err != nil {
		return err
	}
	if _, ok := schema.Field(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	w.state.Role.Fields[key] = value
	return nil
}

// AttachFile sets a file input of the sub-form.
func (w *Wizard) AttachFile(key string, f client.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	schema, err := w.roleSchema()
	if err != nil {
		return err
	}
	if _, ok := schema.File(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	w.state.Role.Files[key] = f
	return nil
}

// DetachFile clears a file input.
func (w *Wizard) DetachFile(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.roleSchema(); err != nil {
		return err
	}
	delete(w.state.Role.Files, key)
	return nil
}

// FillRole replaces the whole sub-form; data must be for the selected role.
func (w *Wizard) FillRole(data RoleData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.roleSchema(); err != nil {
		return err
	}
	if data.Role != w.state.Form.UserRole {
		return fmt.Errorf("sub-form is for %s, selected role is %s", data.Role, w.state.Form.UserRole)
	}
	w.state.Role = data.clone()
	return nil
}

func (w *Wizard) roleSchema() (domain.RoleSchema, error) {
	if w.state.Step != StepRoleSpecific {
		return domain.RoleSchema{}, ErrWrongStep
	}
	schema, ok := domain.SchemaFor(w.state.Form.UserRole)
	if !ok {
		return domain.RoleSchema{}, ErrNoRoleForm
	}
	return schema, nil
}

// Submit sends the registration. Blank required inputs return *MissingFieldsError and an
// unrecognised role returns ErrNoRoleForm, both without a request. A failed request keeps the
// step and sets Alert; the idempotency key is kept so resubmitting retries the same attempt.
func (w *Wizard) Submit(ctx context.Context) (*dto.RegisterResponse, error) {
	w.mu.Lock()
	if w.state.Step != StepRoleSpecific {
		w.mu.Unlock()
		return nil, ErrWrongStep
	}
	if w.state.Submitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	schema, err := w.roleSchema()
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if missing := w.state.Role.MissingRequired(); len(missing) > 0 {
		w.state.Focus = missing[0]
		w.mu.Unlock()
		return nil, &MissingFieldsError{Keys: missing}
	}
	payload := buildPayload(w.state.Form, schema, w.state.Role)
	if w.idempotencyKey == "" {
		w.idempotencyKey = w.newKey()
	}
	key := w.idempotencyKey
	generation := w.generation
	w.state.Submitting = true
	w.state.Alert = ""
	w.mu.Unlock()

	resp, err := w.submitter.Register(ctx, payload, key)

	w.mu.Lock()
	defer w.mu.Unlock()
	if generation != w.generation {
		return nil, ErrAbandoned
	}
	w.state.Submitting = false
	if err != nil {
		w.state.Alert = alertFor(err)
		return nil, err
	}

	w.reset()
	w.state.Step = StepSuccess
	w.state.Registered = resp
	return resp, nil
}

func buildPayload(f Form, schema domain.RoleSchema, role RoleData) *client.Payload {
	p := &client.Payload{}
	p.Set(client.FieldEmail, f.Email)
	p.Set(client.FieldFirstName, f.FirstName)
	p.Set(client.FieldLastName, f.LastName)
	p.Set(client.FieldPhone, f.Phone)
	p.Set(client.FieldPassword, f.Password)
	p.Set(client.FieldConfirmPassword, f.ConfirmPassword)
	p.Set(client.FieldUserRole, string(f.UserRole))
	for _, input := range schema.Fields {
		if v, ok := role.Fields[input.Key]; ok {
			p.Set(input.Key, v)
		}
	}
	for key, file := range role.Files {
		p.Attach(key, file)
	}
	return p
}

func alertFor(err error) string {
	var regErr *client.RegistrationError
	if errors.As(err, &regErr) {
		if lines := regErr.Lines(); len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
		if regErr.Message != "" {
			return regErr.Message
		}
		return GenericFailureMessage
	}
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NetworkErrorMessage
	}
	return fmt.Sprintf("%s (%v)", GenericFailureMessage, err)
}

// DismissAlert clears the alert.
func (w *Wizard) DismissAlert() {
	w.mu.Lock()
	w.state.Alert = ""
	w.mu.Unlock()
}

// Back returns to the initial step keeping base fields and dropping the sub-form. A submission
// still in flight is abandoned.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepRoleSpecific {
		return ErrWrongStep
	}
	w.generation++
	w.state.Step = StepInitial
	w.state.Role = RoleData{}
	w.state.Alert = ""
	w.state.Focus = ""
	w.state.Submitting = false
	w.idempotencyKey = ""
	return nil
}

// StartOver resets everything from any step.
func (w *Wizard) StartOver() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.reset()
}
