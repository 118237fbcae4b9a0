package domain

// File keys accepted by the registration endpoint, in the order they are sent.
const (
	FileDocument                = "document"
	FileBusinessCertificate     = "businessCertificate"
	FileRelevantLicenses        = "relevantLicenses"
	FileRegistrationCertificate = "registrationCertificate"
	FileCatalogFile             = "catalogFile"
	FileProfessionalLicense     = "professionalLicense"
)

// FileKeys is the closed set of multipart file keys.
var FileKeys = []string{
	FileDocument,
	FileBusinessCertificate,
	FileRelevantLicenses,
	FileRegistrationCertificate,
	FileCatalogFile,
	FileProfessionalLicense,
}

// IsFileKey reports whether key is one of FileKeys.
func IsFileKey(key string) bool {
	for _, k := range FileKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FieldSpec describes one scalar of a role sub-form.
type FieldSpec struct {
	Key      string
	Label    string
	Required bool
	// Options restricts the value to an enum when non-empty.
	Options []string
	URL     bool
}

// FileSpec describes one file attachment of a role sub-form.
type FileSpec struct {
	Key      string
	Label    string
	Required bool
}

// RoleSchema is the shape of the role-specific sub-form for one role.
type RoleSchema struct {
	Role   UserRole
	Fields []FieldSpec
	Files  []FileSpec
}

var (
	ConstructorSpecializations = []string{"Residential", "Commercial", "Industrial", "Renovation", "Infrastructure"}
	ArchitectSpecializations   = []string{"Residential", "Commercial", "Landscape", "Interior", "Urban Planning"}
)

var roleSchemas = map[UserRole]RoleSchema{
	RoleCustomer: {
		Role: RoleCustomer,
		Fields: []FieldSpec{
			{Key: "location", Label: "Location", Required: true},
		},
		Files: []FileSpec{
			{Key: FileDocument, Label: "Identity document"},
		},
	},
	RoleConstructor: {
		Role: RoleConstructor,
		Fields: []FieldSpec{
			{Key: "companyName", Label: "Company name", Required: true},
			{Key: "specialization", Label: "Specialization", Required: true, Options: ConstructorSpecializations},
			{Key: "licenseNumber", Label: "License number", Required: true},
			{Key: "portfolioUrl", Label: "Portfolio URL", URL: true},
		},
		Files: []FileSpec{
			{Key: FileBusinessCertificate, Label: "Business certificate", Required: true},
			{Key: FileRelevantLicenses, Label: "Relevant licenses", Required: true},
		},
	},
	RoleSupplier: {
		Role: RoleSupplier,
		Fields: []FieldSpec{
			{Key: "businessName", Label: "Business name", Required: true},
			{Key: "businessRegNumber", Label: "Business registration number", Required: true},
			{Key: "serviceArea", Label: "Service area", Required: true},
		},
		Files: []FileSpec{
			{Key: FileRegistrationCertificate, Label: "Registration certificate", Required: true},
			{Key: FileCatalogFile, Label: "Product catalog"},
		},
	},
	RoleArchitect: {
		Role: RoleArchitect,
		Fields: []FieldSpec{
			{Key: "specialization", Label: "Specialization", Required: true, Options: ArchitectSpecializations},
			{Key: "portfolioUrl", Label: "Portfolio URL", URL: true},
			{Key: "designSoftware", Label: "Design software"},
			{Key: "licenseNumber", Label: "License number", Required: true},
		},
		Files: []FileSpec{
			{Key: FileProfessionalLicense, Label: "Professional license", Required: true},
		},
	},
}

// SchemaFor returns the sub-form for role. ok is false for roles without one.
func SchemaFor(role UserRole) (RoleSchema, bool) {
	schema, ok := roleSchemas[role]
	return schema, ok
}

// Field looks up a scalar spec by key.
func (s RoleSchema) Field(key string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// File looks up a file spec by key.
func (s RoleSchema) File(key string) (FileSpec, bool) {
	for _, f := range s.Files {
		if f.Key == key {
			return f, true
		}
	}
	return FileSpec{}, false
}

// RequiresReview reports whether the role must upload at least one document that an admin verifies.
func (s RoleSchema) RequiresReview() bool {
	for _, f := range s.Files {
		if f.Required {
			return true
		}
	}
	return false
}
