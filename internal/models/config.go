package models

// ProjectConfig is an opaque pass-through bag of app identity and backend
// credentials. The orchestration core forwards it to the generation
// backend and the synthesizer without interpreting it beyond presence
// checks.
type ProjectConfig struct {
	AppName     string `json:"app_name"`
	PackageName string `json:"package_name"`
	BackendURL  string `json:"backend_url,omitempty"`
	BackendKey  string `json:"backend_key,omitempty"`
}

// DefaultProjectConfig returns the config a brand-new project starts with.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		AppName:     "OneClickApp",
		PackageName: "com.oneclick.studio",
	}
}
