package wizard

import (
	"github.com/bid2build/bid2build/internal/client"
	"github.com/bid2build/bid2build/internal/domain"
)

// RoleData is the role-specific sub-form. Fields holds scalars by key, Files holds attachments
// by file key. Only keys of the role's schema are meaningful.
type RoleData struct {
	Role   domain.UserRole
	Fields map[string]string
	Files  map[string]client.File
}

// NewRoleData returns the empty sub-form for role with every scalar present and blank.
func NewRoleData(role domain.UserRole) RoleData {
	d := RoleData{Role: role, Fields: map[string]string{}, Files: map[string]client.File{}}
	if schema, ok := domain.SchemaFor(role); ok {
		for _, f := range schema.Fields {
			d.Fields[f.Key] = ""
		}
	}
	return d
}

func (d RoleData) clone() RoleData {
	cp := RoleData{Role: d.Role, Fields: make(map[string]string, len(d.Fields)), Files: make(map[string]client.File, len(d.Files))}
	for k, v := range d.Fields {
		cp.Fields[k] = v
	}
	for k, v := range d.Files {
		cp.Files[k] = v
	}
	return cp
}

// MissingRequired lists the required scalars left blank and required files not attached, in form order.
func (d RoleData) MissingRequired() []string {
	schema, ok := domain.SchemaFor(d.Role)
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range schema.Fields {
		if f.Required && d.Fields[f.Key] == "" {
			missing = append(missing, f.Key)
		}
	}
	for _, f := range schema.Files {
		if _, ok := d.Files[f.Key]; f.Required && !ok {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// RequiredFields lists the required scalar keys of role.
func RequiredFields(role domain.UserRole) []string {
	schema, _ := domain.SchemaFor(role)
	var keys []string
	for _, f := range schema.Fields {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// RequiredFiles lists the required file keys of role.
func RequiredFiles(role domain.UserRole) []string {
	schema, _ := domain.SchemaFor(role)
	var keys []string
	for _, f := range schema.Files {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

func attachIf(d RoleData, key string, f *client.File) {
	if f != nil {
		d.Files[key] = *f
	}
}

// CustomerData is the Customer sub-form.
type CustomerData struct {
	Location string
	Document *client.File
}

func (c CustomerData) RoleData() RoleData {
	d := NewRoleData(domain.RoleCustomer)
	d.Fields["location"] = c.Location
	attachIf(d, domain.FileDocument, c.Document)
	return d
}

// ConstructorData is the Constructor sub-form.
type ConstructorData struct {
	CompanyName         string
	Specialization      string
	LicenseNumber       string
	PortfolioURL        string
	BusinessCertificate *client.File
	RelevantLicenses    *client.File
}

func (c ConstructorData) RoleData() RoleData {
	d := NewRoleData(domain.RoleConstructor)
	d.Fields["companyName"] = c.CompanyName
	d.Fields["specialization"] = c.Specialization
	d.Fields["licenseNumber"] = c.LicenseNumber
	d.Fields["portfolioUrl"] = c.PortfolioURL
	attachIf(d, domain.FileBusinessCertificate, c.BusinessCertificate)
	attachIf(d, domain.FileRelevantLicenses, c.RelevantLicenses)
	return d
}

// SupplierData is the Supplier sub-form.
type SupplierData struct {
	BusinessName            string
	BusinessRegNumber       string
	ServiceArea             string
	RegistrationCertificate *client.File
	CatalogFile             *client.File
}

func (s SupplierData) RoleData() RoleData {
	d := NewRoleData(domain.RoleSupplier)
	d.Fields["businessName"] = s.BusinessName
	d.Fields["businessRegNumber"] = s.BusinessRegNumber
	d.Fields["serviceArea"] = s.ServiceArea
	attachIf(d, domain.FileRegistrationCertificate, s.RegistrationCertificate)
	attachIf(d, domain.FileCatalogFile, s.CatalogFile)
	return d
}

// ArchitectData is the Architect sub-form.
type ArchitectData struct {
	Specialization      string
	PortfolioURL        string
	DesignSoftware      string
	LicenseNumber       string
	ProfessionalLicense *client.File
}

func (a ArchitectData) RoleData() RoleData {
	d := NewRoleData(domain.RoleArchitect)
	d.Fields["specialization"] = a.Specialization
	d.Fields["portfolioUrl"] = a.PortfolioURL
	d.Fields["designSoftware"] = a.DesignSoftware
	d.Fields["licenseNumber"] = a.LicenseNumber
	attachIf(d, domain.FileProfessionalLicense, a.ProfessionalLicense)
	return d
}
