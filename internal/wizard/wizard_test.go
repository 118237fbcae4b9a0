package wizard

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/client"
	"github.com/bid2build/bid2build/internal/domain"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

type call struct {
	keys []string
	key  string
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []call
	results []error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) Register(ctx context.Context, p *client.Payload, key string) (*dto.RegisterResponse, error) {
	body, err := client.Assemble(p)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{keys: body.Keys, key: key})
	var result error
	if len(f.results) > 0 {
		result = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if result != nil {
		return nil, result
	}
	return &dto.RegisterResponse{Success: true, User: dto.UserResponse{ID: "u1", Email: "ada@example.com"}}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type WizardSuite struct {
	suite.Suite
	submitter *fakeSubmitter
	wizard    *Wizard
}

func TestWizardSuite(t *testing.T) {
	suite.Run(t, new(WizardSuite))
}

func (s *WizardSuite) SetupTest() {
	s.submitter = &fakeSubmitter{}
	s.wizard = New(s.submitter)
}

func (s *WizardSuite) fillBase(role domain.UserRole) {
	w := s.wizard
	s.Require().NoError(w.SetField("email", "Ada@Example.com"))
	s.Require().NoError(w.SetField("firstName", "Ada"))
	s.Require().NoError(w.SetField("lastName", "Lovelace"))
	s.Require().NoError(w.SetField("phone", "5551234567"))
	s.Require().NoError(w.SetField("password", "Str0ng!pass"))
	s.Require().NoError(w.SetField("confirmPassword", "Str0ng!pass"))
	s.Require().NoError(w.SelectRole(role))
}

func (s *WizardSuite) toArchitect() {
	s.fillBase(domain.RoleArchitect)
	s.Require().NoError(s.wizard.Next())
	license := client.FileFromBytes("license.pdf", []byte("%PDF-1.7"))
	s.Require().NoError(s.wizard.FillRole(ArchitectData{
		Specialization:      "Residential",
		LicenseNumber:       "AR-1234",
		ProfessionalLicense: &license,
	}.RoleData()))
}

func (s *WizardSuite) TestWeakPasswordBlocksNext() {
	s.fillBase(domain.RoleArchitect)
	s.Require().NoError(s.wizard.SetField("password", "abc"))
	s.Require().NoError(s.wizard.SetField("confirmPassword", "abc"))

	err := s.wizard.Next()
	var guardErr *GuardError
	s.Require().ErrorAs(err, &guardErr)
	s.Equal([]Guard{GuardPassword}, guardErr.Failed)

	state := s.wizard.State()
	s.Equal(StepInitial, state.Step)
	s.Len(state.PasswordErrors, 4)
	s.True(state.PasswordTouched)
	s.Equal("password", state.Focus)
	s.Equal("ada@example.com", state.Form.Email)
	s.Nil(state.Role.Fields)
}

func (s *WizardSuite) TestEveryGuardReported() {
	s.Require().NoError(s.wizard.SetField("email", "a@b.c"))
	s.Require().NoError(s.wizard.SetField("password", "Str0ng!pass"))
	s.Require().NoError(s.wizard.SetField("confirmPassword", "Str0ng!pasS"))

	err := s.wizard.Next()
	var guardErr *GuardError
	s.Require().ErrorAs(err, &guardErr)
	s.Equal([]Guard{GuardEmail, GuardRequired, GuardPasswordMatch, GuardRole}, guardErr.Failed)

	state := s.wizard.State()
	s.Equal("email", state.Focus)
	s.Equal([]string{"Please enter a valid email"}, state.EmailErrors)
	s.Equal("Passwords do not match", state.MismatchError)
	s.Equal(RoleRequiredMessage, state.RoleError)
	s.Equal(map[string]string{"firstName": "is required", "lastName": "is required"}, state.NameErrors)

	s.Require().NoError(s.wizard.SetField("confirmPassword", "Str0ng!pass"))
	s.Empty(s.wizard.State().MismatchError)
}

func (s *WizardSuite) TestBlurAndLiveFeedback() {
	w := s.wizard
	s.Empty(w.State().EmailErrors)
	s.Require().NoError(w.SetField("email", "bad"))
	s.Empty(w.State().EmailErrors)

	w.BlurEmail()
	s.Equal([]string{"Please enter a valid email"}, w.State().EmailErrors)
	s.Require().NoError(w.SetField("email", "user.name+tag@sub.example.co"))
	s.Empty(w.State().EmailErrors)

	s.Require().NoError(w.SetField("password", "abc"))
	w.BlurPassword()
	s.Len(w.State().PasswordErrors, 4)

	s.Equal(MatchUnknown, w.PasswordMatchState())
	s.Require().NoError(w.SetField("confirmPassword", "ab"))
	s.Equal(MatchMismatch, w.PasswordMatchState())
	s.Require().NoError(w.SetField("confirmPassword", "abc"))
	s.Equal(MatchOK, w.PasswordMatchState())

	w.TogglePasswordVisibility()
	w.ToggleConfirmVisibility()
	w.ToggleConfirmVisibility()
	s.True(w.State().ShowPassword)
	s.False(w.State().ShowConfirm)

	s.ErrorIs(w.SetField("nickname", "x"), ErrUnknownField)
}

func (s *WizardSuite) TestPhoneKeystrokes() {
	for _, key := range []string{"5", "5", "5", "1", "2", "3", "4", "5", "6", "7", "8"} {
		s.Require().NoError(s.wizard.TypePhoneKey(key))
	}
	s.Equal("555-123-4567", s.wizard.State().Form.Phone)
}

func (s *WizardSuite) TestMissingRequiredFieldSendsNothing() {
	s.toArchitect()
	s.Require().NoError(s.wizard.SetRoleField("licenseNumber", ""))

	_, err := s.wizard.Submit(context.Background())
	var missing *MissingFieldsError
	s.Require().ErrorAs(err, &missing)
	s.Equal([]string{"licenseNumber"}, missing.Keys)
	s.Equal(StepRoleSpecific, s.wizard.Step())
	s.Equal(0, s.submitter.callCount())
	s.Empty(s.wizard.State().Alert)
}

func (s *WizardSuite) TestSuccessfulSubmit() {
	s.toArchitect()

	resp, err := s.wizard.Submit(context.Background())
	s.Require().NoError(err)
	s.Equal("u1", resp.User.ID)

	state := s.wizard.State()
	s.Equal(StepSuccess, state.Step)
	s.Equal(Form{}, state.Form)
	s.Same(resp, state.Registered)
	s.Empty(s.wizard.IdempotencyKey())

	s.Require().Len(s.submitter.calls, 1)
	s.Equal([]string{
		"email", "firstName", "lastName", "phone", "password", "confirmPassword", "userRole",
		"specialization", "portfolioUrl", "designSoftware", "licenseNumber",
		domain.FileProfessionalLicense,
	}, s.submitter.calls[0].keys)
	s.NotEmpty(s.submitter.calls[0].key)

	s.wizard.StartOver()
	s.Equal(StepInitial, s.wizard.Step())
	s.Nil(s.wizard.State().Registered)
}

func (s *WizardSuite) TestServerErrorsSurfaceAsAlert() {
	s.toArchitect()
	s.submitter.results = []error{&client.RegistrationError{
		Status:  409,
		Message: "Email already registered",
		Errors:  []apperrors.FieldError{{Field: "email", Message: "already registered"}},
	}}

	_, err := s.wizard.Submit(context.Background())
	s.Require().Error(err)
	state := s.wizard.State()
	s.Equal(StepRoleSpecific, state.Step)
	s.Contains(state.Alert, "email: already registered")
	s.False(state.Submitting)
	s.Equal("AR-1234", state.Role.Fields["licenseNumber"])
}

func (s *WizardSuite) TestAlertFallbacks() {
	s.Equal("bad request", alertFor(&client.RegistrationError{Status: 400, Message: "bad request"}))
	s.Equal(GenericFailureMessage, alertFor(&client.RegistrationError{Status: 502}))
	s.Equal(NetworkErrorMessage, alertFor(&client.TransportError{Op: "register", Err: io.ErrUnexpectedEOF}))
	s.Equal(NetworkErrorMessage, alertFor(context.DeadlineExceeded))
}

func (s *WizardSuite) TestRetryAfterTransportErrorReusesKey() {
	s.toArchitect()
	s.submitter.results = []error{&client.TransportError{Op: "register", Err: errors.New("connection refused")}}

	_, err := s.wizard.Submit(context.Background())
	s.Require().Error(err)
	s.Equal(NetworkErrorMessage, s.wizard.State().Alert)

	_, err = s.wizard.Submit(context.Background())
	s.Require().NoError(err)
	s.Require().Len(s.submitter.calls, 2)
	s.Equal(s.submitter.calls[0].key, s.submitter.calls[1].key)
}

func (s *WizardSuite) TestUnreadableSuccessBodyIsNetworkError() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()
	s.wizard = New(client.New(srv.URL))
	s.toArchitect()

	_, err := s.wizard.Submit(context.Background())
	s.Require().Error(err)
	state := s.wizard.State()
	s.Equal(NetworkErrorMessage, state.Alert)
	s.Equal(StepRoleSpecific, state.Step)
}

func (s *WizardSuite) TestBackKeepsBaseAndDropsRoleData() {
	s.toArchitect()
	s.submitter.results = []error{&client.TransportError{Op: "register", Err: errors.New("timeout")}}
	_, _ = s.wizard.Submit(context.Background())
	firstKey := s.wizard.IdempotencyKey()
	s.Require().NotEmpty(firstKey)

	s.Require().NoError(s.wizard.Back())
	state := s.wizard.State()
	s.Equal(StepInitial, state.Step)
	s.Equal("ada@example.com", state.Form.Email)
	s.Equal("555-123-4567", state.Form.Phone)
	s.Nil(state.Role.Fields)
	s.Empty(state.Alert)
	s.Empty(s.wizard.IdempotencyKey())

	s.Require().NoError(s.wizard.Next())
	s.Equal("", s.wizard.State().Role.Fields["licenseNumber"])
	s.ErrorIs(s.wizard.Next(), ErrWrongStep)
}

func (s *WizardSuite) TestUnknownRoleIsSilentDeadEnd() {
	s.fillBase(domain.UserRole("Inspector"))
	s.Require().NoError(s.wizard.Next())

	_, err := s.wizard.Submit(context.Background())
	s.ErrorIs(err, ErrNoRoleForm)
	s.ErrorIs(s.wizard.SetRoleField("licenseNumber", "x"), ErrNoRoleForm)
	s.Equal(StepRoleSpecific, s.wizard.Step())
	s.Empty(s.wizard.State().Alert)
	s.Equal(0, s.submitter.callCount())
}

func (s *WizardSuite) TestSingleSubmissionInFlight() {
	s.submitter.block = make(chan struct{})
	s.submitter.started = make(chan struct{}, 1)
	s.toArchitect()

	done := make(chan error, 1)
	go func() {
		_, err := s.wizard.Submit(context.Background())
		done <- err
	}()
	<-s.submitter.started

	s.True(s.wizard.State().Submitting)
	_, err := s.wizard.Submit(context.Background())
	s.ErrorIs(err, ErrSubmissionInFlight)

	close(s.submitter.block)
	s.NoError(<-done)
	s.Equal(1, s.submitter.callCount())
	s.Equal(StepSuccess, s.wizard.Step())
}

func (s *WizardSuite) TestBackAbandonsInFlightSubmission() {
	s.submitter.block = make(chan struct{})
	s.submitter.started = make(chan struct{}, 1)
	s.toArchitect()

	done := make(chan error, 1)
	go func() {
		_, err := s.wizard.Submit(context.Background())
		done <- err
	}()
	<-s.submitter.started

	s.Require().NoError(s.wizard.Back())
	close(s.submitter.block)
	s.ErrorIs(<-done, ErrAbandoned)
	s.Equal(StepInitial, s.wizard.Step())
}

func (s *WizardSuite) TestRoleSubFormGuards() {
	s.toArchitect()
	s.ErrorIs(s.wizard.SetRoleField("companyName", "x"), ErrUnknownField)
	s.ErrorIs(s.wizard.AttachFile(domain.FileCatalogFile, client.File{}), ErrUnknownField)
	s.Error(s.wizard.FillRole(CustomerData{Location: "Austin"}.RoleData()))
	s.ErrorIs(s.wizard.SetField("email", "x@y.co"), ErrWrongStep)

	s.Require().NoError(s.wizard.DetachFile(domain.FileProfessionalLicense))
	_, err := s.wizard.Submit(context.Background())
	var missing *MissingFieldsError
	s.Require().ErrorAs(err, &missing)
	s.Equal([]string{domain.FileProfessionalLicense}, missing.Keys)
}

func TestRoleDataVariants(t *testing.T) {
	doc := client.FileFromBytes("id.png", []byte("png"))
	tests := []struct {
		name    string
		data    RoleData
		missing []string
	}{
		{"customer without document", CustomerData{Location: "Austin"}.RoleData(), nil},
		{"customer blank", CustomerData{Document: &doc}.RoleData(), []string{"location"}},
		{"constructor blank", ConstructorData{}.RoleData(), []string{"companyName", "specialization", "licenseNumber", domain.FileBusinessCertificate, domain.FileRelevantLicenses}},
		{"supplier without catalog", SupplierData{BusinessName: "b", BusinessRegNumber: "r", ServiceArea: "s", RegistrationCertificate: &doc}.RoleData(), nil},
		{"architect without license file", ArchitectData{Specialization: "Interior", LicenseNumber: "A"}.RoleData(), []string{domain.FileProfessionalLicense}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.data.MissingRequired()
			if len(got) != len(tt.missing) {
				t.Fatalf("MissingRequired() = %v, want %v", got, tt.missing)
			}
			for i := range got {
				if got[i] != tt.missing[i] {
					t.Fatalf("MissingRequired() = %v, want %v", got, tt.missing)
				}
			}
		})
	}
}

func TestRequiredKeys(t *testing.T) {
	if got := RequiredFields(domain.RoleArchitect); len(got) != 2 || got[0] != "specialization" || got[1] != "licenseNumber" {
		t.Fatalf("RequiredFields(Architect) = %v", got)
	}
	if got := RequiredFiles(domain.RoleCustomer); len(got) != 0 {
		t.Fatalf("RequiredFiles(Customer) = %v", got)
	}
}

func TestStepString(t *testing.T) {
	for step, want := range map[Step]string{StepInitial: "initial", StepRoleSpecific: "roleSpecific", StepSuccess: "success"} {
		if step.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(step), step.String(), want)
		}
	}
}

// multipart bodies assembled by the wizard decode with the standard reader.
func TestAssembledPayloadDecodes(t *testing.T) {
	form := Form{Email: "ada@example.com", UserRole: domain.RoleCustomer}
	schema, _ := domain.SchemaFor(domain.RoleCustomer)
	body, err := client.Assemble(buildPayload(form, schema, CustomerData{Location: "Austin"}.RoleData()))
	if err != nil {
		t.Fatal(err)
	}
	_, params, err := mime.ParseMediaType(body.ContentType)
	if err != nil {
		t.Fatal(err)
	}
	mf, err := multipart.NewReader(body.Reader(), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	if mf.Value["location"][0] != "Austin" || len(mf.File) != 0 {
		t.Fatalf("unexpected form: %+v", mf.Value)
	}
}
