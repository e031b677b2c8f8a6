package config

// BatchConfig is the top-level configuration structure parsed from batch YAML.
type BatchConfig struct {
	Batch Batch `yaml:"batch"`
}

// Batch defines a full modernization batch: repository, limits, capability
// models, scan filters, and publish behavior.
type Batch struct {
	Name               string  `yaml:"name"`
	Repo               string  `yaml:"repo"` // owner/name
	ConcurrencyLimit   int     `yaml:"concurrency_limit"`
	MaxAttempts        int     `yaml:"max_attempts"` // retries after the first attempt
	PerArtifactTimeout string  `yaml:"per_artifact_timeout"`
	Models             Models  `yaml:"models"`
	Scan               Scan    `yaml:"scan"`
	Publish            Publish `yaml:"publish"`
}

// Models names the model used for each capability. The analyzer and
// diagnoser default to a stronger model than the transformer and verifier.
type Models struct {
	Analyzer    string `yaml:"analyzer"`
	Transformer string `yaml:"transformer"`
	Verifier    string `yaml:"verifier"`
	Diagnoser   string `yaml:"diagnoser"`
}

// Scan controls which files become artifacts.
type Scan struct {
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	MaxFileKB    int      `yaml:"max_file_kb"`
	MaxArtifacts int      `yaml:"max_artifacts"`
}

// Publish controls the commit coordinator.
type Publish struct {
	BaseBranch   string `yaml:"base_branch"`
	BranchPrefix string `yaml:"branch_prefix"`
	Title        string `yaml:"title"`
	MaxRetries   int    `yaml:"max_retries"` // retries for transient sink failures
	Draft        bool   `yaml:"draft"`
}
