package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/client"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/session"
	"github.com/bid2build/bid2build/internal/validation"
	"github.com/bid2build/bid2build/internal/wizard"
)

func newRegisterCmd(app *cliApp) *cobra.Command {
	var showPasswords bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account step by step",
		Long: "Walks through the sign-up form. Type " + cmdBack + " on the role form to return to the first step, " +
			"or " + cmdRestart + " anywhere to start over.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.sessions()
			if err != nil {
				return err
			}
			w := wizard.New(app.api())
			if showPasswords {
				w.TogglePasswordVisibility()
				w.ToggleConfirmVisibility()
			}
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			return runRegister(cmd.Context(), w, p, store)
		},
	}
	cmd.Flags().BoolVar(&showPasswords, "show-password", false, "echo passwords while typing them")
	return cmd
}

func runRegister(ctx context.Context, w *wizard.Wizard, p *prompter, store session.Store) error {
	for {
		var err error
		switch w.Step() {
		case wizard.StepInitial:
			err = initialStep(p, w)
		case wizard.StepRoleSpecific:
			err = roleStep(ctx, p, w)
		case wizard.StepSuccess:
			return finish(p, w, store)
		}

		switch {
		case err == nil:
		case errors.Is(err, errBack):
			if backErr := w.Back(); backErr != nil {
				p.printf("Nothing to go back to.\n")
			}
		case errors.Is(err, errRestart):
			w.StartOver()
			p.printf("Starting over.\n")
		default:
			return err
		}
	}
}

var baseLabels = []struct{ key, label string }{
	{client.FieldEmail, "Email"},
	{client.FieldFirstName, "First name"},
	{client.FieldLastName, "Last name"},
	{client.FieldPhone, "Phone (optional)"},
	{client.FieldPassword, "Password"},
	{client.FieldConfirmPassword, "Confirm password"},
}

func initialStep(p *prompter, w *wizard.Wizard) error {
	p.printf("\nStep 1 of 2: account details\n")
	pending := map[string]bool{}
	for _, f := range baseLabels {
		pending[f.key] = true
	}
	pending[client.FieldUserRole] = true

	for {
		for _, f := range baseLabels {
			if !pending[f.key] {
				continue
			}
			if err := askBaseField(p, w, f.key, f.label); err != nil {
				return err
			}
		}
		if pending[client.FieldUserRole] {
			if err := askRole(p, w); err != nil {
				return err
			}
		}

		err := w.Next()
		var guardErr *wizard.GuardError
		if !errors.As(err, &guardErr) {
			return err
		}
		pending = reportGuards(p, w.State(), guardErr)
	}
}

func askBaseField(p *prompter, w *wizard.Wizard, key, label string) error {
	state := w.State()
	var answer string
	var err error
	switch key {
	case client.FieldPassword:
		answer, err = p.askSecret(label, state.ShowPassword)
	case client.FieldConfirmPassword:
		answer, err = p.askSecret(label, state.ShowConfirm)
	default:
		current := map[string]string{
			client.FieldEmail:     state.Form.Email,
			client.FieldFirstName: state.Form.FirstName,
			client.FieldLastName:  state.Form.LastName,
			client.FieldPhone:     state.Form.Phone,
		}[key]
		answer, err = p.askDefault(label, current)
	}
	if err != nil {
		return err
	}
	if err := w.SetField(key, answer); err != nil {
		return err
	}

	switch key {
	case client.FieldEmail:
		w.BlurEmail()
		for _, msg := range w.State().EmailErrors {
			p.printf("  ! %s\n", msg)
		}
	case client.FieldPassword:
		w.BlurPassword()
		for _, check := range validation.PasswordChecks(answer) {
			mark := "x"
			if check.Met {
				mark = "ok"
			}
			p.printf("  [%s] %s\n", mark, check.Message)
		}
	case client.FieldConfirmPassword:
		if w.PasswordMatchState() == wizard.MatchMismatch {
			p.printf("  ! %s\n", validation.PasswordMismatchMessage)
		}
	case client.FieldPhone:
		if phone := w.State().Form.Phone; phone != "" {
			p.printf("  -> %s\n", phone)
		}
	}
	return nil
}

func askRole(p *prompter, w *wizard.Wizard) error {
	for i, role := range domain.RegistrableRoles {
		p.printf("  %d) %s\n", i+1, role)
	}
	for {
		answer, err := p.ask("Role")
		if err != nil {
			return err
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(domain.RegistrableRoles) {
			return w.SelectRole(domain.RegistrableRoles[n-1])
		}
		if role, ok := domain.ParseUserRole(answer); ok {
			return w.SelectRole(role)
		}
		p.printf("  ! %s\n", wizard.RoleRequiredMessage)
	}
}

// reportGuards prints the failing sections and returns the fields to ask again.
func reportGuards(p *prompter, state wizard.State, guardErr *wizard.GuardError) map[string]bool {
	pending := map[string]bool{}
	p.printf("\nPlease fix the following:\n")
	for _, g := range guardErr.Failed {
		switch g {
		case wizard.GuardEmail:
			pending[client.FieldEmail] = true
			for _, msg := range state.EmailErrors {
				p.printf("  email: %s\n", msg)
			}
		case wizard.GuardRequired:
			for field, msg := range state.NameErrors {
				pending[field] = true
				p.printf("  %s: %s\n", field, msg)
			}
		case wizard.GuardPassword:
			pending[client.FieldPassword] = true
			pending[client.FieldConfirmPassword] = true
			for _, msg := range state.PasswordErrors {
				p.printf("  password: %s\n", msg)
			}
		case wizard.GuardPasswordMatch:
			pending[client.FieldPassword] = true
			pending[client.FieldConfirmPassword] = true
			p.printf("  confirmPassword: %s\n", state.MismatchError)
		case wizard.GuardRole:
			pending[client.FieldUserRole] = true
			p.printf("  userRole: %s\n", state.RoleError)
		}
	}
	return pending
}

func roleStep(ctx context.Context, p *prompter, w *wizard.Wizard) error {
	state := w.State()
	schema, ok := domain.SchemaFor(state.Form.UserRole)
	if !ok {
		return fmt.Errorf("no registration form for role %q", state.Form.UserRole)
	}
	p.printf("\nStep 2 of 2: %s details (%s to change account details)\n", schema.Role, cmdBack)

	var only map[string]bool
	for {
		if err := askRoleForm(p, w, schema, only); err != nil {
			return err
		}

		_, err := w.Submit(ctx)
		var missing *wizard.MissingFieldsError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &missing):
			p.printf("  ! Please fill out: %s\n", strings.Join(missing.Keys, ", "))
			only = map[string]bool{}
			for _, key := range missing.Keys {
				only[key] = true
			}
		case errors.Is(err, wizard.ErrNoRoleForm), errors.Is(err, wizard.ErrWrongStep):
			return err
		default:
			p.printf("\n%s\n", w.State().Alert)
			p.printf("Edit any field, or press enter to keep it and resubmit.\n")
			only = nil
		}
	}
}

// askRoleForm prompts every input of the sub-form, or only those in only when it is non-nil.
func askRoleForm(p *prompter, w *wizard.Wizard, schema domain.RoleSchema, only map[string]bool) error {
	for _, f := range schema.Fields {
		if only != nil && !only[f.Key] {
			continue
		}
		label := f.Label
		if len(f.Options) > 0 {
			label += " (" + strings.Join(f.Options, "/") + ")"
		}
		if !f.Required {
			label += " (optional)"
		}
		answer, err := p.askDefault(label, w.State().Role.Fields[f.Key])
		if err != nil {
			return err
		}
		if err := w.SetRoleField(f.Key, answer); err != nil {
			return err
		}
	}
	for _, f := range schema.Files {
		if only != nil && !only[f.Key] {
			continue
		}
		label := f.Label + " file path"
		if !f.Required {
			label += " (optional)"
		}
		current := ""
		if file, ok := w.State().Role.Files[f.Key]; ok {
			current = file.Name
		}
		answer, err := p.askDefault(label, current)
		if err != nil {
			return err
		}
		if answer == "" || answer == current {
			continue
		}
		if err := w.AttachFile(f.Key, client.FileFromPath(answer)); err != nil {
			return err
		}
	}
	return nil
}

func finish(p *prompter, w *wizard.Wizard, store session.Store) error {
	resp := w.State().Registered
	if resp == nil {
		return errors.New("registration finished without a response")
	}
	p.printf("\n%s\n", resp.Message)
	p.printf("Account %s is %s.\n", resp.User.Email, resp.User.Status)
	for _, doc := range resp.Documents {
		p.printf("  %s: %s\n", doc.Kind, doc.Status)
	}
	if resp.Token == "" {
		return nil
	}
	return store.Set(sessionFrom(resp))
}

func sessionFrom(resp *dto.RegisterResponse) *session.Session {
	return &session.Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}
}
