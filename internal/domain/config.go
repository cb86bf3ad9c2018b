package domain

// Config is the node description served on the info endpoint.
type Config struct {
	Name            string `yaml:"name"`
	Version         string `yaml:"version"`
	FQDN            string `yaml:"fqdn"`
	IndexName       string `yaml:"indexName"`
	MarkupProcessor string `yaml:"markupProcessor"`
}
