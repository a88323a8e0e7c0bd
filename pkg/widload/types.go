package widload

import (
	"errors"
	"fmt"
	"time"
)

// LoadConfig contains all parameters needed for a load run.
type LoadConfig struct {
	// InputDir holds the country reference file, the per-country data files
	// and the metadata files.
	InputDir string

	// ConnectionString is the PostgreSQL connection string (URI or ADO.NET format).
	ConnectionString string

	// AuthMethod and the cloud fields below select IAM token authentication.
	// They are copied onto the parsed connection string.
	AuthMethod        AuthMethod
	AWSRegion         string
	GoogleInstance    string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	Tables TableNames
	Files  SourceFiles

	// Workers is the number of partitions provisioned concurrently. 1 means sequential.
	Workers int

	// MetadataSample, when positive, loads only the N largest metadata files
	// and deduplicates the staging relation on (variable, age, pop).
	MetadataSample int

	SkipFacts    bool
	SkipMetadata bool

	// Timeout bounds the whole run. Zero means no timeout.
	Timeout time.Duration

	Verbose bool
}

// TableNames holds the store identifiers. Fact doubles as the partition prefix.
type TableNames struct {
	Fact     string `yaml:"fact"`
	Metadata string `yaml:"metadata"`
	Enriched string `yaml:"enriched"`
}

// Staging returns the name of the metadata staging relation.
func (t TableNames) Staging() string {
	return t.Metadata + StagingSuffix
}

// WithDefaults fills empty names with the package defaults.
func (t TableNames) WithDefaults() TableNames {
	if t.Fact == "" {
		t.Fact = DefaultFactTable
	}
	if t.Metadata == "" {
		t.Metadata = DefaultMetadataTable
	}
	if t.Enriched == "" {
		t.Enriched = DefaultEnrichedTable
	}
	return t
}

// SourceFiles names the input files relative to LoadConfig.InputDir.
type SourceFiles struct {
	Countries string `yaml:"countries"`

	// DataPattern must contain exactly one %s, replaced by the source country code.
	DataPattern string `yaml:"data_pattern"`

	MetadataGlob string `yaml:"metadata_glob"`
}

// WithDefaults fills empty fields with the package defaults.
func (f SourceFiles) WithDefaults() SourceFiles {
	if f.Countries == "" {
		f.Countries = DefaultCountriesFile
	}
	if f.DataPattern == "" {
		f.DataPattern = DefaultDataFilePattern
	}
	if f.MetadataGlob == "" {
		f.MetadataGlob = DefaultMetadataGlob
	}
	return f
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.InputDir == "" {
		errs = append(errs, fmt.Errorf("InputDir is required: %w", ErrInvalidConfig))
	}
	if c.ConnectionString == "" {
		errs = append(errs, fmt.Errorf("ConnectionString is required: %w", ErrInvalidConfig))
	}
	if !c.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("unknown auth method %d: %w", c.AuthMethod, ErrInvalidConfig))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d: %w", c.Workers, ErrInvalidConfig))
	}
	if c.MetadataSample < 0 {
		errs = append(errs, fmt.Errorf("metadata sample cannot be negative: %w", ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}
	if c.SkipFacts && c.SkipMetadata {
		errs = append(errs, fmt.Errorf("skipping both facts and metadata leaves nothing to do: %w", ErrInvalidConfig))
	}

	for field, name := range map[string]string{
		"fact table":     c.Tables.Fact,
		"metadata table": c.Tables.Metadata,
		"enriched table": c.Tables.Enriched,
	} {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s name is required: %w", field, ErrInvalidConfig))
			continue
		}
		if err := ValidateIdentifier(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	if c.Tables.Fact != "" && c.Tables.Fact == c.Tables.Enriched {
		errs = append(errs, fmt.Errorf("fact and enriched tables must differ: %w", ErrInvalidConfig))
	}

	if c.Files.Countries == "" || c.Files.DataPattern == "" || c.Files.MetadataGlob == "" {
		errs = append(errs, fmt.Errorf("source file names are required: %w", ErrInvalidConfig))
	} else if err := ValidateDataPattern(c.Files.DataPattern); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	AuthMethod AuthMethod

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is used when AuthMethod is AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string

	// Azure Entra ID parameters. If all three are set, Service Principal
	// authentication is used; otherwise the DefaultAzureCredential chain.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS RDS IAM token
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Entra ID token
)

func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}
