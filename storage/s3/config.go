package s3

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

// Config holds S3 storage configuration. Buckets are chosen per call.
type Config struct {
	// Region is the AWS region.
	Region string `mapstructure:"region" json:"region"`

	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// AccessKey is the AWS access key ID. Empty uses the default credential chain.
	AccessKey string `mapstructure:"access_key" json:"access_key"`

	// SecretKey is the AWS secret access key.
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`

	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	// Always on with a custom endpoint.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style"`

	// PublicURL overrides the base of object URLs, e.g. a CDN in front of the buckets.
	PublicURL string `mapstructure:"public_url" json:"public_url"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}
